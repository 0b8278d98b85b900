package bot

import "strings"

const hiddenUserName = "Скрытый пользователь"

// ForwardAuthor resolves the display name of a forwarded message's
// original author. The second return reports whether the message is a
// forward at all.
func ForwardAuthor(msg *Message) (string, bool) {
	if msg == nil || msg.ForwardOrigin == nil {
		return "", false
	}
	origin := msg.ForwardOrigin
	switch origin.Type {
	case "user":
		if origin.SenderUser != nil {
			return fullName(origin.SenderUser), true
		}
	case "hidden_user":
		name := strings.TrimSpace(origin.SenderUserName)
		if name == "" {
			name = hiddenUserName
		}
		return name, true
	case "chat":
		if origin.SenderChat != nil {
			return origin.SenderChat.Title, true
		}
	case "channel":
		if origin.Chat != nil {
			return origin.Chat.Title, true
		}
	}
	// Unknown origin shape: still a forward, author unresolvable.
	return "", true
}

func fullName(u *User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	return name
}
