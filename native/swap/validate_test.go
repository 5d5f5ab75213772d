package swap

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

func TestHashSecretMatchesVerification(t *testing.T) {
	secret := hash(0x5E)
	if err := verifyPreimage(HashSecret(secret), secret); err != nil {
		t.Fatalf("round trip: %v", err)
	}
	if err := verifyPreimage(HashSecret(secret), hash(0x5F)); !errors.Is(err, ErrSecretMismatch) {
		t.Fatalf("wrong secret: got %v, want %v", err, ErrSecretMismatch)
	}
}

func TestClampFillAmount(t *testing.T) {
	order := func(total, filled, minFill int64, partial bool) *Order {
		return &Order{
			TotalAmount:       big.NewInt(total),
			FilledAmount:      big.NewInt(filled),
			MinFillAmount:     big.NewInt(minFill),
			AllowPartialFills: partial,
		}
	}

	cases := []struct {
		name      string
		order     *Order
		requested int64
		want      int64
		wantErr   error
	}{
		{
			name:      "within bounds",
			order:     order(1_000, 0, 10, true),
			requested: 200,
			want:      200,
		},
		{
			name:      "clamped to remaining",
			order:     order(1_000, 800, 10, true),
			requested: 500,
			want:      200,
		},
		{
			name:      "below minimum",
			order:     order(1_000, 0, 100, true),
			requested: 50,
			wantErr:   ErrFillTooSmall,
		},
		{
			name:      "sub-minimum remainder passes",
			order:     order(1_000, 950, 100, true),
			requested: 50,
			want:      50,
		},
		{
			name:      "whole-only rejects partial",
			order:     order(1_000, 0, 10, false),
			requested: 500,
			wantErr:   ErrPartialFillsDisabled,
		},
		{
			name:      "whole-only accepts clamped full",
			order:     order(1_000, 0, 10, false),
			requested: 5_000,
			want:      1_000,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := clampFillAmount(tc.order, big.NewInt(tc.requested))
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("got %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("clamp: %v", err)
			}
			if amount.Int64() != tc.want {
				t.Fatalf("got %s, want %d", amount, tc.want)
			}
		})
	}
}

func TestSanitizeOrder(t *testing.T) {
	valid := &Order{
		ID:            hash(0x01),
		TotalAmount:   big.NewInt(1_000),
		FilledAmount:  big.NewInt(100),
		MinFillAmount: big.NewInt(10),
		SourceChain:   1,
		DestChain:     2,
	}
	clone, err := SanitizeOrder(valid)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	clone.FilledAmount.SetInt64(999)
	if valid.FilledAmount.Int64() != 100 {
		t.Fatalf("sanitize returned an aliased record")
	}

	overfilled := valid.Clone()
	overfilled.FilledAmount = big.NewInt(2_000)
	if _, err := SanitizeOrder(overfilled); err == nil {
		t.Fatalf("overfilled order accepted")
	}

	sameChain := valid.Clone()
	sameChain.DestChain = sameChain.SourceChain
	if _, err := SanitizeOrder(sameChain); err == nil {
		t.Fatalf("same-chain order accepted")
	}
}

func TestSanitizeFill(t *testing.T) {
	valid := &Fill{ID: hash(0x01), OrderID: hash(0x02), FillAmount: big.NewInt(200)}
	if _, err := SanitizeFill(valid); err != nil {
		t.Fatalf("sanitize: %v", err)
	}

	zero := valid.Clone()
	zero.FillAmount = big.NewInt(0)
	if _, err := SanitizeFill(zero); err == nil {
		t.Fatalf("zero-amount fill accepted")
	}

	contradictory := valid.Clone()
	contradictory.Withdrawn = true
	contradictory.Refunded = true
	if _, err := SanitizeFill(contradictory); err == nil {
		t.Fatalf("withdrawn+refunded fill accepted")
	}
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind ErrorKind
	}{
		{ErrOrderNotFound, KindNotFound},
		{ErrFillExists, KindAlreadyExists},
		{ErrUnauthorized, KindUnauthorized},
		{ErrFillTooSmall, KindInvalidParameter},
		{ErrOrderCancelled, KindStateConflict},
		{ErrTimelockExpired, KindTimingViolation},
		{ErrSecretMismatch, KindSecretMismatch},
		{ErrAmountOverflow, KindArithmeticOverflow},
		{ErrTransferFailed, KindTransferFailure},
	}
	for _, tc := range cases {
		if got := KindOf(tc.err); got != tc.kind {
			t.Fatalf("%v: got kind %v, want %v", tc.err, got, tc.kind)
		}
	}
	if got := KindOf(errors.New("plain")); got != 0 {
		t.Fatalf("foreign error carried kind %v", got)
	}
	// Wrapped sentinels keep both identity and kind.
	wrapped := fmt.Errorf("context: %w", ErrTransferFailed)
	if !errors.Is(wrapped, ErrTransferFailed) || KindOf(wrapped) != KindTransferFailure {
		t.Fatalf("wrapped sentinel lost identity or kind")
	}
}
