package market

import (
	"time"

	"github.com/lagrangedao/go-computing-market/internal/store"
	"golang.org/x/xerrors"
)

const maxPrunePerRequest = 256

// MarkRequestSeen remembers the digest of a signed request until expires and
// fails with ErrReplayedRequest if the digest is still remembered. Digests that
// expired by now are forgotten on the way.
func (m *Market) MarkRequestSeen(now time.Time, digest []byte, expires time.Time) error {
	return m.store.Update(func(w store.Writer) error {
		if err := pruneSeen(w, now); err != nil {
			return err
		}

		var held time.Time
		err := w.Load(SeenRequestKey(digest), &held)
		switch {
		case err == nil:
			if held.After(now) {
				return xerrors.Errorf("digest %x held until %s: %w", digest, held.Format(time.RFC3339), ErrReplayedRequest)
			}
			if err = w.Delete(SeenExpiryKey(held.Unix(), digest)); err != nil {
				return err
			}
		case !isNotFound(err):
			return xerrors.Errorf("loading request digest: %w", err)
		}

		expires = expires.UTC()
		if err = w.Save(SeenRequestKey(digest), expires); err != nil {
			return err
		}
		return w.Save(SeenExpiryKey(expires.Unix(), digest), struct{}{})
	})
}

func pruneSeen(w store.Writer, now time.Time) error {
	var expired [][]byte
	err := w.Range(SeenExpiryPrefix, nil, func(key, _ []byte) (bool, error) {
		if len(key) < 8 || int64(decodeID(key[:8])) > now.Unix() {
			return false, nil
		}
		expired = append(expired, key)
		return len(expired) < maxPrunePerRequest, nil
	})
	if err != nil {
		return err
	}
	for _, key := range expired {
		if err = w.Delete(SeenRequestKey(key[8:])); err != nil {
			return err
		}
		if err = w.Delete(append(append([]byte{}, SeenExpiryPrefix...), key...)); err != nil {
			return err
		}
	}
	return nil
}
