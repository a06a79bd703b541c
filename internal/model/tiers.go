package model

var (
	domesticFactCheckDomains = []string{
		"factcheck.snu.ac.kr",
		"newstof.com",
		"factcheck.jtbc.co.kr",
		"news.kbs.co.kr",
		"yna.co.kr",
	}

	domesticNewsDomains = []string{
		"yna.co.kr",
		"kbs.co.kr",
		"imbc.com",
		"sbs.co.kr",
		"jtbc.co.kr",
		"hani.co.kr",
		"khan.co.kr",
		"chosun.com",
		"joongang.co.kr",
		"donga.com",
	}

	localDomains = []string{
		"korea.kr",
		"busan.com",
		"kado.net",
		"kwnews.co.kr",
		"jejunews.com",
	}

	internationalFactCheckDomains = []string{
		"snopes.com",
		"politifact.com",
		"factcheck.org",
		"fullfact.org",
		"afp.com",
	}

	internationalMediaDomains = []string{
		"reuters.com",
		"apnews.com",
		"bbc.com",
		"nytimes.com",
		"theguardian.com",
		"washingtonpost.com",
		"aljazeera.com",
		"npr.org",
		"bloomberg.com",
		"cnn.com",
	}

	socialMediaDomains = []string{
		"facebook.com",
		"fb.com",
		"twitter.com",
		"x.com",
		"instagram.com",
		"threads.net",
		"tiktok.com",
		"youtube.com",
		"youtu.be",
		"reddit.com",
		"linkedin.com",
		"pinterest.com",
		"t.me",
		"telegram.me",
		"blog.naver.com",
		"cafe.naver.com",
		"post.naver.com",
		"tistory.com",
		"brunch.co.kr",
		"band.us",
		"dcinside.com",
	}
)

// DefaultTierConfig returns the built-in tier lists. Domestic claims search
// domestic fact-checkers first; international claims start abroad.
func DefaultTierConfig() TierConfig {
	return TierConfig{
		Domestic: []SourceTier{
			{Rank: 1, Name: "domestic fact-checkers", Category: CategoryDomesticFactCheck, Domains: clone(domesticFactCheckDomains)},
			{Rank: 2, Name: "domestic news", Category: CategoryDomesticNews, Domains: clone(domesticNewsDomains)},
			{Rank: 3, Name: "local and government", Category: CategoryLocal, Domains: clone(localDomains)},
			{Rank: 4, Name: "international fact-checkers", Category: CategoryInternationalFactCheck, Domains: clone(internationalFactCheckDomains)},
			{Rank: 5, Name: "international media", Category: CategoryInternationalMedia, Domains: clone(internationalMediaDomains)},
		},
		International: []SourceTier{
			{Rank: 1, Name: "international fact-checkers", Category: CategoryInternationalFactCheck, Domains: clone(internationalFactCheckDomains)},
			{Rank: 2, Name: "international media", Category: CategoryInternationalMedia, Domains: clone(internationalMediaDomains)},
			{Rank: 3, Name: "domestic fact-checkers", Category: CategoryDomesticFactCheck, Domains: clone(domesticFactCheckDomains)},
			{Rank: 4, Name: "domestic news", Category: CategoryDomesticNews, Domains: clone(domesticNewsDomains)},
		},
		SocialMedia: clone(socialMediaDomains),
	}
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
