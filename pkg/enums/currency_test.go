package enums

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrencyIsValid(t *testing.T) {
	require.True(t, CurrencyINR.IsValid())
	require.False(t, Currency("USD").IsValid())
	require.False(t, Currency("").IsValid())
}
