package message

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"litmail.art/mailgate/pkg/base"
)

func TestOutboundBuildRoundTrip(t *testing.T) {
	out := Outbound{
		From:    "bob@example.com",
		To:      "alice@example.com",
		Subject: "see you there",
		Body:    "Bringing the slides.",
	}

	raw, err := out.Build()
	require.NoError(t, err)

	detail := NormalizeDetail(base.RawMessage{ID: "1", Body: raw})
	assert.Contains(t, detail.From, "bob@example.com")
	assert.Contains(t, detail.To, "alice@example.com")
	assert.Equal(t, "see you there", detail.Subject)
	assert.Equal(t, "Bringing the slides.", strings.TrimRight(detail.Body, "\r\n"))
	assert.NotEmpty(t, detail.Date)
}

func TestOutboundBuildGeneratesMessageID(t *testing.T) {
	raw1, err := Outbound{From: "bob@example.com", To: "alice@example.com"}.Build()
	require.NoError(t, err)
	raw2, err := Outbound{From: "bob@example.com", To: "alice@example.com"}.Build()
	require.NoError(t, err)

	id1 := headerValue(t, raw1, "Message-Id")
	id2 := headerValue(t, raw2, "Message-Id")

	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
	assert.Contains(t, id1, "@example.com")
}

func headerValue(t *testing.T, raw []byte, key string) string {
	t.Helper()

	entity := read(raw)
	require.NotNil(t, entity)
	return entity.Header.Get(key)
}
