package provider

// Defaults returns the built-in provider list.
func Defaults() []Definition {
	return []Definition{
		{Format: `#https?://((m|www)\.)?youtube\.com/watch.*#i`, Endpoint: "https://www.youtube.com/oembed", Regex: true},
		{Format: `#https?://((m|www)\.)?youtube\.com/playlist.*#i`, Endpoint: "https://www.youtube.com/oembed", Regex: true},
		{Format: `#https?://((m|www)\.)?youtube\.com/shorts/*#i`, Endpoint: "https://www.youtube.com/oembed", Regex: true},
		{Format: `#https?://((m|www)\.)?youtube\.com/live/*#i`, Endpoint: "https://www.youtube.com/oembed", Regex: true},
		{Format: `#https?://youtu\.be/.*#i`, Endpoint: "https://www.youtube.com/oembed", Regex: true},
		{Format: `#https?://(.+\.)?vimeo\.com/.*#i`, Endpoint: "https://vimeo.com/api/oembed.{format}", Regex: true},
		{Format: `#https?://(www\.)?dailymotion\.com/.*#i`, Endpoint: "https://www.dailymotion.com/services/oembed", Regex: true},
		{Format: `#https?://dai\.ly/.*#i`, Endpoint: "https://www.dailymotion.com/services/oembed", Regex: true},
		{Format: `#https?://(www\.)?flickr\.com/.*#i`, Endpoint: "https://www.flickr.com/services/oembed/", Regex: true},
		{Format: `#https?://flic\.kr/.*#i`, Endpoint: "https://www.flickr.com/services/oembed/", Regex: true},
		{Format: `#https?://(.+\.)?smugmug\.com/.*#i`, Endpoint: "https://api.smugmug.com/services/oembed/", Regex: true},
		{Format: `#https?://(www\.)?scribd\.com/(doc|document)/.*#i`, Endpoint: "https://www.scribd.com/services/oembed", Regex: true},
		{Format: `#https?://wordpress\.tv/.*#i`, Endpoint: "https://wordpress.tv/oembed/", Regex: true},
		{Format: `#https?://(.+\.)?crowdsignal\.net/.*#i`, Endpoint: "https://api.crowdsignal.com/oembed", Regex: true},
		{Format: `#https?://(www\.)?soundcloud\.com/.*#i`, Endpoint: "https://soundcloud.com/oembed", Regex: true},
		{Format: `#https?://(open|play)\.spotify\.com/.*#i`, Endpoint: "https://embed.spotify.com/oembed/", Regex: true},
		{Format: `#https?://(www\.)?imgur\.com/.*#i`, Endpoint: "https://api.imgur.com/oembed", Regex: true},
		{Format: `#https?://(www\.)?issuu\.com/.+/docs/.+#i`, Endpoint: "https://issuu.com/oembed_wp", Regex: true},
		{Format: `#https?://(www\.)?mixcloud\.com/.*#i`, Endpoint: "https://app.mixcloud.com/oembed/", Regex: true},
		{Format: `#https?://(www\.|embed\.)?ted\.com/talks/.*#i`, Endpoint: "https://www.ted.com/services/v1/oembed.{format}", Regex: true},
		{Format: `#https?://(www\.)?(animoto|video214)\.com/play/.*#i`, Endpoint: "https://animoto.com/oembeds/create", Regex: true},
		{Format: `#https?://(.+)\.tumblr\.com/.*#i`, Endpoint: "https://www.tumblr.com/oembed/1.0", Regex: true},
		{Format: `#https?://(www\.)?kickstarter\.com/projects/.*#i`, Endpoint: "https://www.kickstarter.com/services/oembed", Regex: true},
		{Format: `#https?://kck\.st/.*#i`, Endpoint: "https://www.kickstarter.com/services/oembed", Regex: true},
		{Format: `#https?://cloudup\.com/.*#i`, Endpoint: "https://cloudup.com/oembed", Regex: true},
		{Format: `#https?://(www\.)?reverbnation\.com/.*#i`, Endpoint: "https://www.reverbnation.com/oembed", Regex: true},
		{Format: `#https?://(www\.)?reddit\.com/r/[^/]+/comments/.*#i`, Endpoint: "https://www.reddit.com/oembed", Regex: true},
		{Format: `#https?://(www\.)?speakerdeck\.com/.*#i`, Endpoint: "https://speakerdeck.com/oembed.{format}", Regex: true},
		{Format: `#https?://([a-z]{2}|www)\.screencast\.com/.*#i`, Endpoint: "https://api.screencast.com/external/oembed", Regex: true},
		{Format: `#https?://([a-z0-9-]+\.)?amazon\.(com|com\.mx|com\.br|ca)/.*#i`, Endpoint: "https://read.amazon.com/kp/api/v1/oembed", Regex: true},
		{Format: `#https?://(www\.)?tiktok\.com/.*/video/.*#i`, Endpoint: "https://www.tiktok.com/oembed", Regex: true},
		{Format: `#https?://(www\.)?tiktok\.com/@.*#i`, Endpoint: "https://www.tiktok.com/oembed", Regex: true},
		{Format: `#https?://([a-z]{2}|www)\.pinterest\.com(\.(au|mx))?/.*#i`, Endpoint: "https://www.pinterest.com/oembed.json", Regex: true},
		{Format: `#https?://(www\.)?wolframcloud\.com/obj/.+#i`, Endpoint: "https://www.wolframcloud.com/oembed", Regex: true},
		{Format: `#https?://pca\.st/.+#i`, Endpoint: "https://pca.st/oembed.json", Regex: true},
		{Format: `#https?://((play|www)\.)?anghami\.com/.*#i`, Endpoint: "https://api.anghami.com/rest/v1/oembed.view", Regex: true},
		{Format: `#https?://bsky\.app/profile/.*/post/.*#i`, Endpoint: "https://embed.bsky.app/oembed", Regex: true},
		{Format: `#https?://(www\.)?canva\.com/design/.*/view.*#i`, Endpoint: "https://canva.com/_oembed", Regex: true},
	}
}
