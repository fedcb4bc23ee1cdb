package permissions

import api "github.com/OvyFlash/telegram-bot-api"

// IsAdmin is true for the creator and every administrator.
func IsAdmin(member *api.ChatMember) bool {
	if member == nil {
		return false
	}
	return member.IsCreator() || member.IsAdministrator()
}

// CanDeleteMessages reports whether member may remove other users' messages.
func CanDeleteMessages(member *api.ChatMember) bool {
	if member == nil {
		return false
	}
	if member.IsCreator() {
		return true
	}
	return member.IsAdministrator() && member.CanDeleteMessages
}
