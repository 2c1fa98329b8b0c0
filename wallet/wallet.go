package wallet

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/filswan/go-swan-lib/logs"
	"golang.org/x/xerrors"
)

const (
	WalletRepo  = "keystore"
	KNamePrefix = "wallet-"
)

var (
	ErrKeyInfoNotFound = fmt.Errorf("key info not found")
	ErrKeyExists       = fmt.Errorf("key already exists")
)

// SetupWallet opens the keystore kept under the market repo.
func SetupWallet(repo, dir string) (*LocalWallet, error) {
	if strings.TrimSpace(repo) == "" {
		return nil, fmt.Errorf("missing repo path, please set --repo or export CM_PATH=xxx")
	}

	kstore, err := OpenOrInitKeystore(filepath.Join(repo, dir))
	if err != nil {
		return nil, err
	}

	return NewWallet(kstore)
}

type LocalWallet struct {
	keys     map[string]*KeyInfo
	keystore KeyStore

	lk sync.Mutex
}

func NewWallet(keystore KeyStore) (*LocalWallet, error) {
	w := &LocalWallet{
		keys:     make(map[string]*KeyInfo),
		keystore: keystore,
	}
	return w, nil
}

// WalletSign signs msg with the key of addr and returns the 0x-prefixed signature.
func (w *LocalWallet) WalletSign(ctx context.Context, addr string, msg []byte) (string, error) {
	ki, err := w.findKey(addr)
	if err != nil {
		return "", err
	}
	if ki == nil {
		return "", xerrors.Errorf("signing using private key '%s': %w", addr, ErrKeyInfoNotFound)
	}
	sig, err := Sign(ki.PrivateKey, msg)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

func (w *LocalWallet) WalletVerify(ctx context.Context, addr string, sig []byte, msg []byte) (bool, error) {
	return Verify(addr, sig, msg)
}

func (w *LocalWallet) findKey(addr string) (*KeyInfo, error) {
	if !common.IsHexAddress(addr) {
		return nil, xerrors.Errorf("invalid address %q", addr)
	}
	addr = common.HexToAddress(addr).Hex()

	w.lk.Lock()
	defer w.lk.Unlock()

	k, ok := w.keys[addr]
	if ok {
		return k, nil
	}
	if w.keystore == nil {
		logs.GetLogger().Warn("findKey didn't find the key in in-memory wallet")
		return nil, nil
	}

	ki, err := w.keystore.Get(KNamePrefix + addr)
	if err != nil {
		if xerrors.Is(err, ErrKeyInfoNotFound) {
			return nil, nil
		}
		return nil, xerrors.Errorf("getting from keystore: %w", err)
	}

	w.keys[addr] = &ki
	return &ki, nil
}

func (w *LocalWallet) WalletExport(ctx context.Context, addr string) (*KeyInfo, error) {
	k, err := w.findKey(addr)
	if err != nil {
		return nil, xerrors.Errorf("failed to find key to export: %w", err)
	}
	if k == nil {
		return nil, xerrors.Errorf("private key not found for %s", addr)
	}

	return k, nil
}

func (w *LocalWallet) WalletImport(ctx context.Context, ki *KeyInfo) (string, error) {
	if ki == nil || len(strings.TrimSpace(ki.PrivateKey)) == 0 {
		return "", fmt.Errorf("not found private key")
	}
	ki.PrivateKey = strings.TrimPrefix(strings.TrimSpace(ki.PrivateKey), "0x")

	_, publicKeyECDSA, err := ToPublic(ki.PrivateKey)
	if err != nil {
		return "", err
	}

	address := crypto.PubkeyToAddress(*publicKeyECDSA).Hex()
	if err := w.keystore.Put(KNamePrefix+address, *ki); err != nil {
		return "", xerrors.Errorf("saving to keystore: %w", err)
	}
	return address, nil
}

// WalletList returns every address held in the keystore.
func (w *LocalWallet) WalletList(ctx context.Context) ([]string, error) {
	all, err := w.keystore.List()
	if err != nil {
		return nil, xerrors.Errorf("listing keystore: %w", err)
	}

	addressList := make([]string, 0, len(all))
	for _, a := range all {
		if strings.HasPrefix(a, KNamePrefix) {
			addressList = append(addressList, strings.TrimPrefix(a, KNamePrefix))
		}
	}
	return addressList, nil
}

func (w *LocalWallet) WalletNew(ctx context.Context) (string, error) {
	w.lk.Lock()
	defer w.lk.Unlock()

	privateK, err := crypto.GenerateKey()
	if err != nil {
		return "", err
	}

	privateKey := hexutil.Encode(crypto.FromECDSA(privateK))[2:]
	address := crypto.PubkeyToAddress(privateK.PublicKey).Hex()

	keyInfo := KeyInfo{PrivateKey: privateKey}
	if err := w.keystore.Put(KNamePrefix+address, keyInfo); err != nil {
		return "", xerrors.Errorf("saving to keystore: %w", err)
	}
	w.keys[address] = &keyInfo

	return address, nil
}

func (w *LocalWallet) WalletDelete(ctx context.Context, addr string) error {
	k, err := w.findKey(addr)
	if err != nil {
		return xerrors.Errorf("wallet delete: failed to delete key %s : %w", addr, err)
	}
	if k == nil {
		return nil // already not there
	}
	addr = common.HexToAddress(addr).Hex()

	w.lk.Lock()
	defer w.lk.Unlock()

	if err := w.keystore.Delete(KNamePrefix + addr); err != nil {
		return xerrors.Errorf("wallet delete: failed to delete key %s: %w", addr, err)
	}
	delete(w.keys, addr)
	return nil
}
