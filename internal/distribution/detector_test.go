package distribution

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"solana-token-radar/internal/domain"
	"solana-token-radar/internal/solana"
)

func decs(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestEntropy_EqualBalances(t *testing.T) {
	assert.Equal(t, 2.0, Entropy(decs("25", "25", "25", "25")))
	assert.Equal(t, 1.0, Entropy(decs("7.5", "7.5")))
	assert.Equal(t, 0.0, Entropy(decs("42")))
}

func TestEntropy_Bounds(t *testing.T) {
	cases := [][]decimal.Decimal{
		decs("100", "10", "5"),
		decs("1", "1", "1"),
		decs("900", "50", "25", "10", "10", "5"),
		decs("0.001", "0.002", "1000000"),
	}
	for _, c := range cases {
		h := Entropy(c)
		assert.GreaterOrEqual(t, h, 0.0)
		// Rounding to 3 decimals may exceed log2(k) by at most half a unit.
		assert.LessOrEqual(t, h, math.Log2(float64(len(c)))+0.0005)
	}
}

func TestEntropy_ZeroTotal(t *testing.T) {
	assert.Zero(t, Entropy(nil))
	assert.Zero(t, Entropy(decs("0", "0")))
}

func TestDetect_Cliff(t *testing.T) {
	assert.True(t, Detect(decs("100", "10", "5")).CliffDistribution)
	assert.False(t, Detect(decs("100", "40", "5")).CliffDistribution)
	assert.False(t, Detect(decs("100")).CliffDistribution)
	assert.False(t, Detect(decs("100", "0")).CliffDistribution)
	assert.False(t, Detect(decs("90", "30")).CliffDistribution, "ratio of exactly 3 is not a cliff")
}

func TestDetect_Uniform(t *testing.T) {
	assert.True(t, Detect(decs("50", "50", "50", "10")).UniformBalance)
	assert.False(t, Detect(decs("50", "49", "48", "10")).UniformBalance)
	assert.True(t, Detect(decs("50.0", "50", "50.00")).UniformBalance, "equality is by value")
}

func TestDetect_DecimalPattern(t *testing.T) {
	assert.True(t, Detect(decs("1000", "500.5", "200", "100")).DecimalPattern)
	assert.False(t, Detect(decs("1000", "500.5", "200.25", "100")).DecimalPattern)
}

func TestDetect_LowEntropy(t *testing.T) {
	sig := Detect(decs("25", "25", "25", "25"))
	assert.Equal(t, domain.StatusOK, sig.Status)
	assert.Equal(t, 2.0, sig.EntropyScore)
	assert.True(t, sig.LowEntropy)

	eight := decs("1", "1", "1", "1", "1", "1", "1", "1")
	sig = Detect(eight)
	assert.Equal(t, 3.0, sig.EntropyScore)
	assert.False(t, sig.LowEntropy)
}

func TestDetect_SignalsAreIndependent(t *testing.T) {
	sig := Detect(decs("100", "10", "10", "10"))
	assert.True(t, sig.CliffDistribution)
	assert.True(t, sig.UniformBalance)
	assert.True(t, sig.DecimalPattern)
	assert.True(t, sig.LowEntropy)
}

type fakeRPC struct {
	supply    *solana.TokenSupply
	supplyErr error
	largest   []solana.TokenAccountBalance
	largeErr  error
}

func (f *fakeRPC) GetTokenSupply(context.Context, string) (*solana.TokenSupply, error) {
	return f.supply, f.supplyErr
}

func (f *fakeRPC) GetTokenLargestAccounts(context.Context, string) ([]solana.TokenAccountBalance, error) {
	return f.largest, f.largeErr
}

func TestDetector_Detect(t *testing.T) {
	largest := make([]solana.TokenAccountBalance, 0, 25)
	for i := 0; i < 25; i++ {
		largest = append(largest, solana.TokenAccountBalance{Address: "A", Amount: "1000"})
	}
	rpc := &fakeRPC{supply: &solana.TokenSupply{Amount: "1000000", Decimals: 3}, largest: largest}

	sig := NewDetector(rpc, 4, nil).Detect(context.Background(), "mint")
	assert.Equal(t, domain.StatusOK, sig.Status)
	assert.Equal(t, 2.0, sig.EntropyScore, "only the top 4 balances are considered")
	assert.True(t, sig.UniformBalance)
	assert.True(t, sig.DecimalPattern)
}

func TestDetector_FailureIsZeroed(t *testing.T) {
	rpc := &fakeRPC{
		largest:   []solana.TokenAccountBalance{{Address: "A", Amount: "1"}},
		supplyErr: errors.New("supply unavailable"),
	}

	sig := NewDetector(rpc, 0, nil).Detect(context.Background(), "mint")
	assert.Equal(t, domain.StatusFailed, sig.Status)
	assert.Zero(t, sig.EntropyScore)
	assert.False(t, sig.UniformBalance)
	assert.False(t, sig.CliffDistribution)
	assert.False(t, sig.DecimalPattern)
	assert.False(t, sig.LowEntropy)
	assert.Contains(t, sig.Error, "supply unavailable")
}
