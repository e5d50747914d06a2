package normalize

// DefaultTables returns the built-in lookups. Each call returns fresh
// copies so callers may extend them.
func DefaultTables() Tables {
	return Tables{
		Apps: map[string]string{
			"com.hammerandchisel.discord":                   "Discord",
			"com.hnc.Discord":                               "Discord",
			"com.atebits.Tweetie2":                          "X",
			"com.burbn.instagram":                           "Instagram",
			"com.toyopagroup.picaboo":                       "Snapchat",
			"com.zhiliaoapp.musically":                      "TikTok",
			"com.reddit.Reddit":                             "Reddit",
			"net.whatsapp.WhatsApp":                         "WhatsApp",
			"net.whatsapp.WhatsAppSMB":                      "WhatsApp Business",
			"com.apple.MobileSMS":                           "Messages",
			"com.apple.mobilephone":                         "Phone",
			"com.apple.InCallService":                       "Phone Call",
			"com.microsoft.skype.teams":                     "Microsoft Teams",
			"com.google.Gmail":                              "Gmail",
			"de.web.mobilenavigator":                        "WEB.DE Mail",
			"com.microsoft.Office.Outlook":                  "Outlook",
			"com.apple.dt.Xcode":                            "Xcode",
			"com.microsoft.VSCode":                          "VS Code",
			"com.apple.Terminal":                            "Terminal",
			"com.apple.finder":                              "Finder",
			"com.google.antigravity":                        "Antigravity",
			"com.personio":                                  "Personio",
			"com.github.stormbreaker.prod":                  "GitHub",
			"com.google.Chrome":                             "Chrome",
			"com.google.chrome.ios":                         "Chrome",
			"com.apple.Safari":                              "Safari",
			"com.spotify.client":                            "Spotify",
			"com.apple.mobileslideshow":                     "Photos",
			"com.apple.camera":                              "Camera",
			"com.google.gemini":                             "Google Gemini",
			"io.robbie.HomeAssistant":                       "Home Assistant",
			"com.microsoft.azureauthenticator":              "MS Authenticator",
			"com.apple.mobiletimer":                         "Clock",
			"com.apple.mobilecal":                           "Calendar",
			"com.apple.weather":                             "Weather",
			"com.apple.Preferences":                         "Settings",
			"com.apple.systempreferences":                   "System Settings",
			"com.apple.AppStore":                            "App Store",
			"com.ubnt.unifiac":                              "UniFi",
			"com.amazon.AmazonDE":                           "Amazon",
			"de.deutschepost.dhl":                           "DHL",
			"com.ebaykleinanzeigen.ebc":                     "Kleinanzeigen",
			"com.6minutesmedia.mydealz":                     "Mydealz",
			"com.lidl.eci.lidl.plus":                        "Lidl Plus",
			"com.apple.springboard.home-screen-open-folder": "System: Folder",
			"com.apple.springboard.today-view":              "System: Today View",
			"com.apple.control-center":                      "Control Center",
			"com.apple.SleepLockScreen":                     "Lock Screen",
			"com.apple.ClockAngel":                          "Clock Widget",
			"com.apple.iphonesimulator":                     "iPhone Simulator",
			"nichtlegacy.your-spotify":                      "Your_Spotify",
		},
		Titles: []Entry{
			{From: "WhatsApp Messenger", To: "WhatsApp"},
			{From: "TikTok - Videos, Shopping & mehr", To: "TikTok"},
			{From: "TikTok - Videos, Shop", To: "TikTok"},
			{From: "TikTok - Videos", To: "TikTok"},
			{From: "Discord - Talk, Play, Hang Out", To: "Discord"},
			{From: "Discord - Talk, Play, H", To: "Discord"},
			{From: "Discord - Talk, Chat & Hang Out", To: "Discord"},
			{From: "Instagram", To: "Instagram"},
			{From: "Snapchat", To: "Snapchat"},
			{From: "X", To: "X"},
			{From: "X (Twitter)", To: "X"},
			{From: "LinkedIn: Network & Job Finder", To: "LinkedIn"},
			{From: "Telegram Messenger", To: "Telegram"},
			{From: "Gmail - Email by Google", To: "Gmail"},
			{From: "Microsoft Outlook", To: "Outlook"},
			{From: "WEB.DE - Mail, Cloud & News", To: "WEB.DE"},
			{From: "WEB.DE - Mail", To: "WEB.DE"},
			{From: "GMX - Mail & Cloud", To: "GMX"},
			{From: "Google Chrome", To: "Chrome"},
			{From: "Spotify: Music and Podcasts", To: "Spotify"},
			{From: "stats.fm for Spotify Music App", To: "stats.fm"},
			{From: "Radio Germany Online - Live Internet FM & Webradio", To: "Radio Germany"},
			{From: "Plex: Stream Live TV Channels", To: "Plex"},
			{From: "Plex: Stream Live TV Ch", To: "Plex"},
			{From: "Plex Dash", To: "Plex"},
			{From: "PlexOVision", To: "Plex"},
			{From: "AliExpress - Shopping App", To: "AliExpress"},
			{From: "Amazon Business: B2B Shopping", To: "Amazon Business"},
			{From: "Kleinanzeigen - without eBay", To: "Kleinanzeigen"},
			{From: "Kleinanzeigen - ohne eBay", To: "Kleinanzeigen"},
			{From: "eBay online shopping & selling", To: "eBay"},
			{From: "Klarna | Pay your way", To: "Klarna"},
			{From: "Lieferando.de", To: "Lieferando"},
			{From: "Too Good To Go: End Food Waste", To: "Too Good To Go"},
			{From: "PayPal - Pay, Send", To: "PayPal"},
			{From: "PayPal - Pay", To: "PayPal"},
			{From: "Revolut: Send, spend and save", To: "Revolut"},
			{From: "Revolut: Send", To: "Revolut"},
			{From: "N26 — Love your bank", To: "N26"},
			{From: "Finanzguru - Konten & Verträge", To: "Finanzguru"},
			{From: "Crypto Pro: Live Coin Tracker", To: "Crypto Pro"},
			{From: "Moss by Nufin", To: "Moss"},
			{From: "Paycell - Digital Wallet", To: "Paycell"},
			{From: "Microsoft Authenticator", To: "Microsoft Authenticator"},
			{From: "Speedtest by Ookla", To: "Speedtest"},
			{From: "Proton VPN: Fast & Secure", To: "ProtonVPN"},
			{From: "Proxyman - Capture HTTPS", To: "Proxyman"},
			{From: "Weather & Radar - Storm radar", To: "Weather"},
			{From: "Cowboy - Electric Bikes", To: "Cowboy"},
			{From: "Health Auto Export - JSON+CSV", To: "Health Auto Export"},
			{From: "Bevel: All-In-One Health App", To: "Bevel"},
			{From: "Ubiquiti WiFiman", To: "WiFiman"},
			{From: "Microsoft SwiftKey AI Keyboard", To: "SwiftKey"},
			{From: "Intune Company Portal", To: "Intune"},
		},
		Categories: map[string]string{
			"Discord":                    "Social",
			"X":                          "Social",
			"Instagram":                  "Social",
			"Snapchat":                   "Social",
			"TikTok":                     "Social",
			"Reddit":                     "Social",
			"WhatsApp":                   "Social",
			"WhatsApp Business":          "Social",
			"Facebook":                   "Social",
			"Threads":                    "Social",
			"Pinterest":                  "Social",
			"LinkedIn":                   "Social",
			"Telegram":                   "Social",
			"Messages":                   "Communication",
			"Phone":                      "Communication",
			"Phone Call":                 "Communication",
			"Microsoft Teams":            "Communication",
			"Gmail":                      "Communication",
			"Outlook":                    "Communication",
			"Mail":                       "Communication",
			"WEB.DE":                     "Communication",
			"GMX":                        "Communication",
			"Contacts":                   "Communication",
			"Xcode":                      "Productivity",
			"VS Code":                    "Productivity",
			"Terminal":                   "Productivity",
			"Finder":                     "Productivity",
			"Antigravity":                "Productivity",
			"Antigravity-Tools":          "Productivity",
			"GitHub":                     "Productivity",
			"Personio":                   "Productivity",
			"iPhone Simulator":           "Productivity",
			"Instruments":                "Productivity",
			"Apple Configurator":         "Productivity",
			"TestFlight":                 "Productivity",
			"Microsoft 365 Admin":        "Productivity",
			"Microsoft 365 Copilot":      "Productivity",
			"Microsoft OneNote":          "Productivity",
			"Microsoft To Do":            "Productivity",
			"Excel":                      "Productivity",
			"Notes":                      "Productivity",
			"Reminders":                  "Productivity",
			"Files":                      "Productivity",
			"Calendar":                   "Productivity",
			"Calculator":                 "Productivity",
			"Translate":                  "Productivity",
			"Preview":                    "Productivity",
			"Activity Monitor":           "Productivity",
			"Python":                     "Productivity",
			"Chrome":                     "Browser",
			"Safari":                     "Browser",
			"ChatGPT":                    "Browser",
			"Google Maps":                "Browser",
			"Google News":                "Browser",
			"Google Drive":               "Browser",
			"Spotify":                    "Media",
			"Photos":                     "Media",
			"Camera":                     "Media",
			"Your_Spotify":               "Media",
			"stats.fm":                   "Media",
			"YouTube":                    "Media",
			"Music":                      "Media",
			"Infuse":                     "Media",
			"Plex":                       "Media",
			"Letterboxd":                 "Media",
			"ILOVEMUSIC.DE":              "Media",
			"Radio Germany":              "Media",
			"PlayStation App":            "Media",
			"Google Gemini":              "Utilities",
			"Home Assistant":             "Utilities",
			"Microsoft Authenticator":    "Utilities",
			"Bitwarden Authenticator":    "Utilities",
			"Bitwarden Password Manager": "Utilities",
			"Clock":                      "Utilities",
			"Weather":                    "Utilities",
			"Settings":                   "Utilities",
			"System Settings":            "Utilities",
			"App Store":                  "Utilities",
			"UniFi":                      "Utilities",
			"Ubiquiti WiFiman":           "Utilities",
			"Find My":                    "Utilities",
			"Home":                       "Utilities",
			"Passwords":                  "Utilities",
			"Shortcuts":                  "Utilities",
			"Speedtest":                  "Utilities",
			"Tailscale":                  "Utilities",
			"WireGuard":                  "Utilities",
			"ProtonVPN":                  "Utilities",
			"Proxyman":                   "Utilities",
			"ECOVACS HOME":               "Utilities",
			"Cowboy":                     "Utilities",
			"Untis Mobile":               "Utilities",
			"Apple Fitness":              "Utilities",
			"Apple Health":               "Utilities",
			"Health Auto Export":         "Utilities",
			"RENPHO Health":              "Utilities",
			"Bevel":                      "Utilities",
			"Amazon":                     "Shopping",
			"Amazon Business":            "Shopping",
			"DHL":                        "Shopping",
			"Kleinanzeigen":              "Shopping",
			"Mydealz":                    "Shopping",
			"Lidl Plus":                  "Shopping",
			"AliExpress":                 "Shopping",
			"eBay":                       "Shopping",
			"Klarna":                     "Shopping",
			"Lieferando":                 "Shopping",
			"Too Good To Go":             "Shopping",
			"Heritage Auctions":          "Shopping",
			"PayPal":                     "Finance",
			"Revolut":                    "Finance",
			"N26":                        "Finance",
			"Finanzguru":                 "Finance",
			"Crypto Pro":                 "Finance",
			"Moss":                       "Finance",
			"Paycell":                    "Finance",
			"comdirect photoTAN App":     "Finance",
		},
		SystemPrefix: "System:",
		SystemTitles: []string{"Lock Screen", "Control Center", "Clock Widget"},
		PrefixLength: 15,
	}
}
