package repost

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/fluffyriot/lunchsync/internal/store"
)

// Discord caps messages at 2000 characters; leave room for the header
// and link lines.
const maxContentRunes = 1700

// DiscordSink posts lunch announcements to a single Discord channel.
type DiscordSink struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordSink(botToken, channelID string) (*DiscordSink, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &DiscordSink{
		session:   session,
		channelID: channelID,
	}, nil
}

func (d *DiscordSink) Repost(ctx context.Context, post store.SynchronizedPost, pageName string) (string, error) {
	msg, err := d.session.ChannelMessageSend(d.channelID, formatMessage(post, pageName), discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func formatMessage(post store.SynchronizedPost, pageName string) string {
	content := post.Post.Content
	if runes := []rune(content); len(runes) > maxContentRunes {
		content = string(runes[:maxContentRunes]) + "…"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s)\n\n", pageName, post.Post.PublishedAt.Format("02.01.2006 15:04"))
	b.WriteString(content)
	b.WriteString("\n\n")
	b.WriteString(post.Post.URL)
	return b.String()
}
