package license

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpiry_JSON(t *testing.T) {
	t.Parallel()

	t.Run("never", func(t *testing.T) {
		t.Parallel()

		for _, in := range []string{`"never"`, `"Never"`, `" NEVER "`} {
			var e Expiry
			require.NoError(t, json.Unmarshal([]byte(in), &e), in)
			assert.True(t, e.Never)
		}

		data, err := json.Marshal(NeverExpires())
		require.NoError(t, err)
		assert.Equal(t, `"never"`, string(data))
	})

	t.Run("timestamp is normalized to UTC", func(t *testing.T) {
		t.Parallel()

		var e Expiry
		require.NoError(t, json.Unmarshal([]byte(`"2030-06-01T12:00:00+02:00"`), &e))
		assert.False(t, e.Never)
		assert.Equal(t, "2030-06-01T10:00:00Z", e.String())
	})

	t.Run("rejects non-strings and garbage", func(t *testing.T) {
		t.Parallel()

		for _, in := range []string{`42`, `true`, `"next year"`, `""`} {
			var e Expiry
			assert.Error(t, json.Unmarshal([]byte(in), &e), in)
		}
	})
}

func TestVerificationResult_Tier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TierPro, validResult(TierPro).Tier())
	assert.Equal(t, Tier(""), VerificationResult{Valid: true}.Tier())
	assert.Equal(t, Tier(""), VerificationResult{
		Valid:   false,
		License: &LicenseInfo{Tier: TierLifetime},
	}.Tier())
}

func TestTier_Unrestricted(t *testing.T) {
	t.Parallel()

	assert.True(t, TierLifetime.Unrestricted())
	assert.True(t, TierEnterprise.Unrestricted())
	assert.False(t, TierPro.Unrestricted())
	assert.False(t, TierStandard.Unrestricted())
}

func TestVerificationResult_JSON(t *testing.T) {
	t.Parallel()

	users := 10
	res := VerificationResult{
		Valid:   true,
		Message: "ok",
		License: &LicenseInfo{
			Tier:         TierEnterprise,
			MaxUsers:     &users,
			ExpiresAt:    ExpiresOn(time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC)),
			CustomerName: "Acme",
		},
	}

	data, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"valid": true,
		"message": "ok",
		"license": {"type": "enterprise", "maxUsers": 10, "expiresAt": "2031-01-01T00:00:00Z", "customerName": "Acme"}
	}`, string(data))

	data, err = json.Marshal(notConfiguredResult())
	require.NoError(t, err)
	assert.JSONEq(t, `{"valid":false,"message":"not configured"}`, string(data))
}
