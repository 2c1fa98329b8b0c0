package market

import (
	"cosmossdk.io/math"

	"github.com/lagrangedao/go-computing-market/internal/models"
	"golang.org/x/xerrors"
)

// The escrow of a job is the job record itself: while its status is open the
// payment_amount is held on behalf of the client, and the terminal transition
// declares exactly one payout or refund of that amount.

// SplitPayment divides a payment between the community pool and the provider.
// The community share is floor(payment * feePercent / 100).
func SplitPayment(payment math.Int, feePercent uint64) (communityFee, providerFee math.Int, err error) {
	if payment.IsNil() || payment.IsNegative() {
		return math.Int{}, math.Int{}, xerrors.Errorf("payment %v: %w", payment, ErrArithmetic)
	}
	if feePercent > 100 {
		return math.Int{}, math.Int{}, xerrors.Errorf("fee percent %d: %w", feePercent, ErrArithmetic)
	}

	communityFee = payment.Mul(math.NewIntFromUint64(feePercent)).QuoRaw(100)
	providerFee, err = safeSub(payment, communityFee)
	if err != nil {
		return math.Int{}, math.Int{}, err
	}
	return communityFee, providerFee, nil
}

func safeSub(a, b math.Int) (math.Int, error) {
	if a.LT(b) {
		return math.Int{}, xerrors.Errorf("underflow: cannot subtract %s from %s: %w", b.String(), a.String(), ErrArithmetic)
	}
	return a.Sub(b), nil
}

// findPayment returns the attached amount of the designated asset.
func findPayment(funds []models.Coin, denom string) (math.Int, error) {
	for _, coin := range funds {
		if coin.Denom != denom {
			continue
		}
		if coin.Amount.IsNil() || !coin.Amount.IsPositive() {
			return math.Int{}, ErrNoPayment
		}
		return coin.Amount, nil
	}
	return math.Int{}, xerrors.Errorf("no %s attached: %w", denom, ErrNoPayment)
}

func settlementTransfers(job *models.Job, cfg *models.Config) ([]models.Transfer, math.Int, math.Int, error) {
	communityFee, providerFee, err := SplitPayment(job.PaymentAmount, cfg.CommunityFeePercent)
	if err != nil {
		return nil, math.Int{}, math.Int{}, xerrors.Errorf("job %d: %w", job.Id, err)
	}

	var transfers []models.Transfer
	if !communityFee.IsZero() {
		transfers = append(transfers, models.Transfer{
			JobId:     job.Id,
			Kind:      models.TransferCommunityFee,
			ToAddress: cfg.CommunityPool,
			Coin:      models.Coin{Denom: cfg.Denom, Amount: communityFee},
		})
	}
	transfers = append(transfers, models.Transfer{
		JobId:     job.Id,
		Kind:      models.TransferProviderFee,
		ToAddress: job.Provider,
		Coin:      models.Coin{Denom: cfg.Denom, Amount: providerFee},
	})
	return transfers, communityFee, providerFee, nil
}

func refundTransfer(job *models.Job, cfg *models.Config) models.Transfer {
	return models.Transfer{
		JobId:     job.Id,
		Kind:      models.TransferRefund,
		ToAddress: job.Client,
		Coin:      models.Coin{Denom: cfg.Denom, Amount: job.PaymentAmount},
	}
}
