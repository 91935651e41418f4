package entity

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"short text collapses whitespace", "Can you   show me\nmy schedule", "Can you show me my schedule"},
		{"cuts at word boundary", "Please list all appointments scheduled for next Tuesday afternoon with Dr. Smith", "Please list all appointments scheduled for next..."},
		{"no spaces hard cut", strings.Repeat("x", 60), strings.Repeat("x", 50) + "..."},
		{"blank", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.in, 50))
		})
	}
}

func TestDeriveTitle_CountsRunes(t *testing.T) {
	in := strings.Repeat("牙", 50)
	assert.Equal(t, in, DeriveTitle(in, 50))
}

func TestNewConversation_RequiresOwner(t *testing.T) {
	_, err := NewConversation(0)
	assert.ErrorIs(t, err, ErrInvalidOwner)

	conv, err := NewConversation(42)
	require.NoError(t, err)
	assert.True(t, conv.OwnedBy(42))
	assert.False(t, conv.OwnedBy(43))
	assert.False(t, conv.HasTitle())
}

func TestNewMessage_Validation(t *testing.T) {
	_, err := NewMessage(0, RoleUser, "hi", "")
	assert.ErrorIs(t, err, ErrInvalidConversationID)

	_, err = NewMessage(1, MessageRole("system"), "hi", "")
	assert.ErrorIs(t, err, ErrInvalidMessageRole)

	_, err = NewMessage(1, RoleAssistant, "  ", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestNewMessage_UserMessagesCarryNoToolLabel(t *testing.T) {
	msg, err := NewMessage(1, RoleUser, "show my patients", "get_all_patients")
	require.NoError(t, err)
	assert.Empty(t, msg.FunctionCalled())

	reply, err := NewMessage(1, RoleAssistant, "You have 3 patients.", "get_all_patients")
	require.NoError(t, err)
	assert.Equal(t, "get_all_patients", reply.FunctionCalled())
}

func TestAuditRecord_CopiesArguments(t *testing.T) {
	args := map[string]interface{}{"dentistId": 7}
	rec, err := NewAuditRecord(1, "Admin", "admin", "get_revenue_report", args)
	require.NoError(t, err)

	args["dentistId"] = 9
	assert.Equal(t, 7, rec.Arguments()["dentistId"])
	assert.Equal(t, AuditActionToolInvoked, rec.Action())

	_, err = NewAuditRecord(1, "Admin", "admin", " ", nil)
	assert.ErrorIs(t, err, ErrInvalidAuditTool)
}
