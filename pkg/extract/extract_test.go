package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSocials_Twitter(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"twitter.com", "Follow me at https://twitter.com/streamer123", "https://twitter.com/streamer123"},
		{"x.com", "Find me on https://x.com/streamer123", "https://twitter.com/streamer123"},
		{"without scheme", "twitter.com/cool_streamer for updates", "https://twitter.com/cool_streamer"},
		{"absent", "Just a regular description", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Socials(tt.text).Twitter)
		})
	}
}

func TestSocials_Instagram(t *testing.T) {
	links := Socials("IG: https://instagram.com/my.handle")
	assert.Equal(t, "https://instagram.com/my.handle", links.Instagram)

	links = Socials("https://www.instagram.com/my_handle photos")
	assert.Equal(t, "https://instagram.com/my_handle", links.Instagram)
}

func TestSocials_YouTube(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"channel path", "https://youtube.com/channel/UCabc123", "https://youtube.com/UCabc123"},
		{"user path", "youtube.com/user/mychannel", "https://youtube.com/mychannel"},
		{"at handle", "https://youtube.com/@myhandle", "https://youtube.com/myhandle"},
		{"short link", "https://youtu.be/abc-123", "https://youtube.com/abc-123"},
		{"absent", "no video links here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Socials(tt.text).YouTube)
		})
	}
}

func TestSocials_Discord(t *testing.T) {
	assert.Equal(t, "https://discord.gg/abc123", Socials("Join https://discord.gg/abc123").Discord)
	assert.Equal(t, "https://discord.gg/xyz789", Socials("discord.com/invite/xyz789").Discord)
	assert.Empty(t, Socials("no community yet").Discord)
}

func TestSocials_TikTok(t *testing.T) {
	assert.Equal(t, "https://tiktok.com/@dancer.pro", Socials("clips at tiktok.com/@dancer.pro").TikTok)
	assert.Empty(t, Socials("nothing").TikTok)
}

func TestSocials_AllPlatforms(t *testing.T) {
	text := "twitter.com/me instagram.com/me youtube.com/@me discord.gg/me123 tiktok.com/@me"
	links := Socials(text)
	assert.Equal(t, "https://twitter.com/me", links.Twitter)
	assert.Equal(t, "https://instagram.com/me", links.Instagram)
	assert.Equal(t, "https://youtube.com/me", links.YouTube)
	assert.Equal(t, "https://discord.gg/me123", links.Discord)
	assert.Equal(t, "https://tiktok.com/@me", links.TikTok)
}

func TestSocials_EmptyText(t *testing.T) {
	assert.True(t, Socials("").Empty())
}

func TestEmails_Single(t *testing.T) {
	assert.Equal(t, []string{"business@streamer.tv"}, Emails("Contact: business@streamer.tv"))
}

func TestEmails_Multiple(t *testing.T) {
	emails := Emails("biz: first@streamer.gg, press: second@streamer.gg")
	assert.Equal(t, []string{"first@streamer.gg", "second@streamer.gg"}, emails)
}

func TestEmails_FalsePositivesFiltered(t *testing.T) {
	assert.Empty(t, Emails("mail us at example@example.com or test@test.com"))
	assert.Empty(t, Emails("noreply@somewhere.com and no-reply@other.com and support@brand.io"))
}

func TestEmails_DeduplicatedCaseInsensitively(t *testing.T) {
	emails := Emails("Mail@Streamer.tv or mail@streamer.tv or MAIL@STREAMER.TV")
	assert.Equal(t, []string{"Mail@Streamer.tv"}, emails)
}

func TestEmails_EmptyAndNoMatches(t *testing.T) {
	assert.Nil(t, Emails(""))
	assert.Nil(t, Emails("just a plain description with no contact info"))
}
