package qr

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/credential/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

const window = 5 * time.Minute

func newValidator(t testing.TB, clk *clock.FakeClock) *Validator {
	t.Helper()
	key, err := DeriveKey("test-secret")
	require.NoError(t, err)
	return NewWithKey(key, clk, config.NewStaticAccessPolicy(config.DefaultAccessPolicy()))
}

func validate(v *Validator, memberID, token string) bool {
	ok, _ := v.Validate(context.Background(), domain.Claim{MemberID: memberID, QRToken: token})
	return ok
}

func TestIssuedTokenValidatesWithinWindow(t *testing.T) {
	clk := clock.NewFakeClock(time.UnixMilli(1_700_000_000_000).UTC())
	v := newValidator(t, clk)
	token := v.Issue("M1")

	require.True(t, validate(v, "M1", token))
	clk.Advance(window)
	require.True(t, validate(v, "M1", token), "the boundary is inclusive")
	clk.Advance(time.Millisecond)
	require.False(t, validate(v, "M1", token))
}

func TestExpiredTokenScenario(t *testing.T) {
	issuedAt := int64(1_700_000_000_000)
	clk := clock.NewFakeClock(time.UnixMilli(issuedAt).UTC())
	v := newValidator(t, clk)
	token := "M1:" + strconv.FormatInt(issuedAt, 10) + ":" + v.sign("M1", strconv.FormatInt(issuedAt, 10))

	clk.Set(time.UnixMilli(issuedAt + 301_000).UTC())
	require.False(t, validate(v, "M1", token))
	require.Equal(t, "Invalid QR", v.Detail(false))
}

func TestFutureDatedTokenRejected(t *testing.T) {
	clk := clock.NewFakeClock(time.UnixMilli(1_700_000_000_000).UTC())
	v := newValidator(t, clk)
	token := v.Issue("M1")

	clk.Advance(-time.Second)
	require.False(t, validate(v, "M1", token))
}

func TestMalformedTokens(t *testing.T) {
	clk := clock.NewFakeClock(time.UnixMilli(1_700_000_000_000).UTC())
	v := newValidator(t, clk)
	for _, token := range []string{"", "M1", "M1:abc:sig", "M1:1700000000000", "M1:1700000000000:sig:extra", ":1700000000000:sig"} {
		require.False(t, validate(v, "M1", token), token)
	}
}

func TestDifferentSecretRejected(t *testing.T) {
	clk := clock.NewFakeClock(time.UnixMilli(1_700_000_000_000).UTC())
	token := newValidator(t, clk).Issue("M1")

	other, err := DeriveKey("other-secret")
	require.NoError(t, err)
	v := NewWithKey(other, clk, config.NewStaticAccessPolicy(config.DefaultAccessPolicy()))
	require.False(t, validate(v, "M1", token))
}

func TestNewRequiresSecretInProduction(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	policy := config.NewStaticAccessPolicy(config.DefaultAccessPolicy())

	_, err := New(config.Config{Environment: "production"}, clk, policy, zap.NewNop())
	require.ErrorIs(t, err, ErrSigningSecretMissing)

	v, err := New(config.Config{Environment: "development"}, clk, policy, zap.NewNop())
	require.NoError(t, err)
	require.True(t, validate(v, "M1", v.Issue("M1")))
}

func TestPropertyStaleTokensAlwaysRejected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		issuedAt := rapid.Int64Range(1_600_000_000_000, 1_900_000_000_000).Draw(rt, "issuedAt")
		age := rapid.Int64Range(window.Milliseconds()+1, 30*24*time.Hour.Milliseconds()).Draw(rt, "age")
		memberID := rapid.StringMatching(`[0-9]{1,19}`).Draw(rt, "memberID")

		clk := clock.NewFakeClock(time.UnixMilli(issuedAt).UTC())
		v := newValidator(t, clk)
		token := v.Issue(memberID)

		clk.Set(time.UnixMilli(issuedAt + age).UTC())
		if validate(v, memberID, token) {
			rt.Fatalf("token aged %dms accepted", age)
		}
	})
}

func TestPropertyIdentityMismatchRejected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		embedded := rapid.StringMatching(`[0-9]{1,19}`).Draw(rt, "embedded")
		claimed := rapid.StringMatching(`[0-9]{1,19}`).Filter(func(s string) bool { return s != embedded }).Draw(rt, "claimed")
		age := rapid.Int64Range(0, window.Milliseconds()).Draw(rt, "age")

		clk := clock.NewFakeClock(time.UnixMilli(1_700_000_000_000).UTC())
		v := newValidator(t, clk)
		token := v.Issue(embedded)
		clk.Advance(time.Duration(age) * time.Millisecond)

		if !validate(v, embedded, token) {
			rt.Fatalf("fresh token rejected for its own member")
		}
		if validate(v, claimed, token) {
			rt.Fatalf("token for %q accepted as %q", embedded, claimed)
		}
	})
}

func TestPropertyTamperedSignatureRejected(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		memberID := rapid.StringMatching(`[0-9]{1,19}`).Draw(rt, "memberID")
		clk := clock.NewFakeClock(time.UnixMilli(1_700_000_000_000).UTC())
		v := newValidator(t, clk)
		token := v.Issue(memberID)

		idx := strings.LastIndex(token, ":")
		sig := []byte(token[idx+1:])
		pos := rapid.IntRange(0, len(sig)-1).Draw(rt, "pos")
		if sig[pos] == 'A' {
			sig[pos] = 'B'
		} else {
			sig[pos] = 'A'
		}
		if validate(v, memberID, token[:idx+1]+string(sig)) {
			rt.Fatalf("tampered signature accepted")
		}
	})
}
