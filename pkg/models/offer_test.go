package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOfferStatusPredicates(t *testing.T) {
	require.True(t, OfferSent.Signable())
	require.True(t, OfferViewed.Signable())
	require.False(t, OfferDraft.Signable())
	require.False(t, OfferSigned.Signable())

	for _, s := range []OfferStatus{OfferSigned, OfferDeclined, OfferExpired, OfferWithdrawn} {
		require.True(t, s.Terminal())
	}
	require.False(t, OfferSent.Terminal())
}

func TestOfferExpiredAt(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	o := &OfferLetter{Status: OfferSent}
	require.False(t, o.ExpiredAt(now))

	o.ExpiresAt = &future
	require.False(t, o.ExpiredAt(now))

	o.ExpiresAt = &past
	require.True(t, o.ExpiredAt(now))

	// expired状态本身即过期，与expires_at无关
	o = &OfferLetter{Status: OfferExpired}
	require.True(t, o.ExpiredAt(now))
}

func TestOfferSignTokenNeverSerialized(t *testing.T) {
	o := &OfferLetter{
		ID:        "offer-1",
		SignToken: "tok_super_secret",
		Status:    OfferSent,
	}

	data, err := json.Marshal(o)
	require.NoError(t, err)
	require.NotContains(t, string(data), "tok_super_secret")

	view, err := json.Marshal(o.PublicView())
	require.NoError(t, err)
	require.NotContains(t, string(view), "tok_super_secret")
}
