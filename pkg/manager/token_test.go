package manager

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinTokenManagerIssueAndRedeem(t *testing.T) {
	tm := NewJoinTokenManager()
	jt, err := tm.Issue("node-2", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, jt.Token)
	assert.Equal(t, "node-2", jt.NodeID)

	require.NoError(t, tm.Redeem(jt.Token, "node-2"))
}

func TestJoinTokenManagerRedeemIsSingleUse(t *testing.T) {
	tm := NewJoinTokenManager()
	jt, err := tm.Issue("node-2", time.Hour)
	require.NoError(t, err)

	require.NoError(t, tm.Redeem(jt.Token, "node-2"))
	require.Error(t, tm.Redeem(jt.Token, "node-2"), "a redeemed token cannot be redeemed again")
}

func TestJoinTokenManagerRejectsWrongNode(t *testing.T) {
	tm := NewJoinTokenManager()
	jt, err := tm.Issue("node-2", time.Hour)
	require.NoError(t, err)

	err = tm.Redeem(jt.Token, "node-3")
	require.Error(t, err, "a token minted for node-2 must not be redeemable by node-3")
}

func TestJoinTokenManagerRejectsUnknownToken(t *testing.T) {
	tm := NewJoinTokenManager()
	err := tm.Redeem("never-issued", "node-2")
	require.Error(t, err)
}

func TestJoinTokenManagerRejectsExpiredToken(t *testing.T) {
	tm := NewJoinTokenManager()
	jt, err := tm.Issue("node-2", -time.Second)
	require.NoError(t, err)

	err = tm.Redeem(jt.Token, "node-2")
	require.Error(t, err)
}

func TestJoinTokenManagerRevoke(t *testing.T) {
	tm := NewJoinTokenManager()
	jt, err := tm.Issue("node-2", time.Hour)
	require.NoError(t, err)

	tm.Revoke(jt.Token)
	err = tm.Redeem(jt.Token, "node-2")
	require.Error(t, err)
}

func TestJoinTokenManagerPruneExpired(t *testing.T) {
	tm := NewJoinTokenManager()
	expired, err := tm.Issue("node-2", -time.Second)
	require.NoError(t, err)
	live, err := tm.Issue("node-3", time.Hour)
	require.NoError(t, err)

	tm.PruneExpired()

	pending := tm.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, live.Token, pending[0].Token)
	assert.NotEqual(t, expired.Token, pending[0].Token)
}

func TestJoinTokenManagerPending(t *testing.T) {
	tm := NewJoinTokenManager()
	_, err := tm.Issue("node-2", time.Hour)
	require.NoError(t, err)
	_, err = tm.Issue("node-3", time.Hour)
	require.NoError(t, err)

	assert.Len(t, tm.Pending(), 2)
}
