package table

import (
	"strings"
	"time"
	"unicode"

	"masa-service/internal/protocol"
	appErr "masa-service/pkg/errors"
)

const (
	chatMaxLen   = 140
	typingExpiry = 2500 * time.Millisecond
)

// chatPunctuation is the allowed non-alphanumeric set. Turkish letters
// (ç, ğ, ı, İ, ö, ş, ü) pass the unicode letter check.
const chatPunctuation = " .,!?'\"-:;()"

// SanitizeChat strips disallowed runes and truncates to the chat limit.
func SanitizeChat(text string) string {
	var b strings.Builder
	count := 0
	for _, r := range text {
		if count >= chatMaxLen {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune(chatPunctuation, r) {
			b.WriteRune(r)
			count++
		}
	}
	return strings.TrimSpace(b.String())
}

func (c *Controller) participantNameLocked(id string) (string, int, bool) {
	if p := c.playerByIDLocked(id); p != nil {
		return p.Name, p.Seat, true
	}
	if sp, ok := c.spectators[id]; ok {
		return sp.Name, -1, true
	}
	return "", 0, false
}

func (c *Controller) handleChatLocked(id, text string) error {
	name, seat, ok := c.participantNameLocked(id)
	if !ok {
		return appErr.ErrNotAtTable
	}
	text = SanitizeChat(text)
	if text == "" {
		return nil
	}
	c.broadcastLocked(protocol.EvChat, ginH{
		"from":      name,
		"seat":      seat,
		"text":      text,
		"timestamp": time.Now().UnixMilli(),
	})
	return nil
}

// typing indicator: names self-expire after a short quiet period; each
// change broadcasts the current list to everyone but the sender.
func (c *Controller) handleTypingLocked(id string, isTyping bool) error {
	name, _, ok := c.participantNameLocked(id)
	if !ok {
		return appErr.ErrNotAtTable
	}

	if isTyping {
		if t, ok := c.typing[name]; ok {
			t.Stop()
		}
		c.typing[name] = time.AfterFunc(typingExpiry, func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.destroyed {
				return
			}
			delete(c.typing, name)
			c.broadcastTypingLocked("")
		})
	} else {
		c.clearTypingLocked(name)
	}
	c.broadcastTypingLocked(id)
	return nil
}

func (c *Controller) clearTypingLocked(name string) {
	if t, ok := c.typing[name]; ok {
		t.Stop()
		delete(c.typing, name)
	}
}

func (c *Controller) broadcastTypingLocked(exceptID string) {
	names := make([]string, 0, len(c.typing))
	for name := range c.typing {
		names = append(names, name)
	}
	c.broadcastExceptLocked(exceptID, protocol.EvTypingUpdate, ginH{"players": names})
}
