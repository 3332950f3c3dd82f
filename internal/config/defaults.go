package config

const (
	defaultDataDir              = "~/.local/share/ancile"
	defaultLogDir               = "~/.local/share/ancile/logs"
	defaultLookbackHours        = 24
	defaultIngestTimeout        = 15
	defaultRelevanceThreshold   = 0.7
	defaultScoreCeiling         = 5.0
	defaultMinWords             = 1500
	defaultMaxWords             = 3000
	defaultRewriteAttempts      = 3
	defaultRewriteBackoffBase   = 2
	defaultRewriteBackoffCap    = 60
	defaultRateLimitPause       = 60
	defaultRequestsPerMinute    = 15
	defaultGeminiBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultGeminiModel          = "gemini-2.0-flash-exp"
	defaultGeminiTimeoutSec     = 120
	defaultStrapiURL            = "http://localhost:1337"
	defaultStrapiCollection     = "articles"
	defaultStrapiTimeoutSec     = 30
	defaultSocialCaptionLength  = 400
	defaultSocialTimeoutSec     = 30
	defaultPublishAttempts      = 3
	defaultPublishBackoffBase   = 30
	defaultPublishBackoffCap    = 900
	defaultMaxArticlesPerRun    = 5
	defaultPipelineConcurrency  = 2
	defaultRunTimeoutSeconds    = 1800
	defaultNotifyRequestTimeout = 10
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults. Keyword tables
// and tone rules carry the editorial defaults; deployments are expected to
// tune them in the config file.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Ingest: Ingest{
			LookbackHours:  defaultLookbackHours,
			RequestTimeout: defaultIngestTimeout,
		},
		Relevance: Relevance{
			Threshold:    defaultRelevanceThreshold,
			ScoreCeiling: defaultScoreCeiling,
			Categories:   defaultCategories(),
		},
		Rewrite: Rewrite{
			MinWords:              defaultMinWords,
			MaxWords:              defaultMaxWords,
			MaxAttempts:           defaultRewriteAttempts,
			BackoffBaseSeconds:    defaultRewriteBackoffBase,
			BackoffCapSeconds:     defaultRewriteBackoffCap,
			RateLimitPauseSeconds: defaultRateLimitPause,
			RequestsPerMinute:     defaultRequestsPerMinute,
			BannedTerms:           defaultBannedTerms(),
			Terminology:           defaultTerminology(),
		},
		Gemini: Gemini{
			BaseURL:        defaultGeminiBaseURL,
			Model:          defaultGeminiModel,
			TimeoutSeconds: defaultGeminiTimeoutSec,
		},
		Strapi: Strapi{
			URL:            defaultStrapiURL,
			Collection:     defaultStrapiCollection,
			TimeoutSeconds: defaultStrapiTimeoutSec,
		},
		Social: Social{
			Enabled:          false,
			CaptionMaxLength: defaultSocialCaptionLength,
			TimeoutSeconds:   defaultSocialTimeoutSec,
		},
		Publish: Publish{
			MaxAttempts:        defaultPublishAttempts,
			BackoffBaseSeconds: defaultPublishBackoffBase,
			BackoffCapSeconds:  defaultPublishBackoffCap,
		},
		Pipeline: Pipeline{
			MaxArticlesPerRun: defaultMaxArticlesPerRun,
			Concurrency:       defaultPipelineConcurrency,
			RunTimeoutSeconds: defaultRunTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			RunSummaries:   true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultCategories() []CategoryKeywords {
	return []CategoryKeywords{
		{
			Name: "geopolitics",
			Keywords: []Keyword{
				{Term: "sovereignty", Weight: 1},
				{Term: "multilateral", Weight: 1},
				{Term: "bilateral", Weight: 1},
				{Term: "treaty", Weight: 1},
				{Term: "sanctions", Weight: 1.5},
				{Term: "diplomatic", Weight: 1},
				{Term: "territorial", Weight: 1},
				{Term: "strategic partnership", Weight: 1},
				{Term: "alliance", Weight: 1},
				{Term: "foreign policy", Weight: 1.5},
				{Term: "international relations", Weight: 1},
			},
		},
		{
			Name: "defense",
			Keywords: []Keyword{
				{Term: "military", Weight: 1},
				{Term: "defense", Weight: 1},
				{Term: "armed forces", Weight: 1},
				{Term: "weapons system", Weight: 1.5},
				{Term: "deterrence", Weight: 1},
				{Term: "force projection", Weight: 1},
				{Term: "strategic assets", Weight: 1},
				{Term: "NATO", Weight: 1.5},
				{Term: "joint exercises", Weight: 1},
				{Term: "security cooperation", Weight: 1},
			},
		},
		{
			Name: "cyber",
			Keywords: []Keyword{
				{Term: "APT", Weight: 1.5},
				{Term: "threat actor", Weight: 1.5},
				{Term: "vulnerability", Weight: 1},
				{Term: "cyber attack", Weight: 1},
				{Term: "malware", Weight: 1},
				{Term: "ransomware", Weight: 1},
				{Term: "attribution", Weight: 1},
				{Term: "zero-day", Weight: 1.5},
				{Term: "intrusion", Weight: 1},
				{Term: "breach", Weight: 1},
				{Term: "cybersecurity", Weight: 1},
			},
		},
		{
			Name: "finance",
			Keywords: []Keyword{
				{Term: "fiscal", Weight: 1},
				{Term: "monetary policy", Weight: 1.5},
				{Term: "sovereign debt", Weight: 1.5},
				{Term: "liquidity", Weight: 1},
				{Term: "central bank", Weight: 1},
				{Term: "interest rate", Weight: 1},
				{Term: "inflation", Weight: 1},
				{Term: "bond yield", Weight: 1},
				{Term: "market volatility", Weight: 1},
				{Term: "financial stability", Weight: 1},
			},
		},
	}
}

func defaultBannedTerms() []string {
	return []string{
		"shocking", "amazing", "incredible", "unbelievable", "stunning",
		"mind-blowing", "crazy", "insane", "epic", "game-changer",
	}
}

func defaultTerminology() []TermMapping {
	return []TermMapping{
		{Raw: "market crash", Replacement: "significant market volatility"},
		{Raw: "hacker", Replacement: "threat actor"},
		{Raw: "spy", Replacement: "intelligence operative"},
		{Raw: "explosion", Replacement: "kinetic event"},
	}
}
