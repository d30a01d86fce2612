package core_test

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/purelifecenter/portal/core"
)

func TestEmailMessage_Render(t *testing.T) {
	conf := core.NewTestConfig()
	to := mail.Address{Name: "Ada", Address: "ada@test.com"}

	tests := []struct {
		name     string
		tmpl     string
		data     interface{}
		wantText []string
	}{
		{
			name: "broadcast",
			tmpl: "broadcast",
			data: struct{ Title, Body, SenderName string }{"Summer event", "See you there", "Grace"},
			wantText: []string{"Summer event", "See you there", "From Grace", conf.FrontendBaseURL + "/inbox",
				"Pure Life Center"},
		},
		{
			name:     "password reset",
			tmpl:     "password_reset",
			data:     struct{ Name, UID, Token string }{"Ada", "uid42", "tok"},
			wantText: []string{"Hello Ada", conf.FrontendBaseURL + "/password-reset/uid42/tok"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := core.NewEmailMessage(conf, tc.tmpl, "subject", tc.data, to)
			require.NoError(t, msg.Render())
			assert.True(t, msg.HasContent())
			for _, s := range tc.wantText {
				assert.Contains(t, msg.TextContent, s)
			}
			assert.NotEmpty(t, msg.HTMLContent)
		})
	}

	t.Run("rendered twice", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			msg := core.NewEmailMessage(conf, "broadcast", "subject",
				struct{ Title, Body, SenderName string }{"t", "b", "s"}, to)
			require.NoError(t, msg.Render())
			assert.NotEmpty(t, msg.TextContent)
		}
	})

	t.Run("plain body", func(t *testing.T) {
		msg := &core.EmailMessage{To: []mail.Address{to}, BodyStr: "hi"}
		require.NoError(t, msg.Render())
		assert.Equal(t, "hi", msg.TextContent)
		assert.Empty(t, msg.HTMLContent)
	})
}
