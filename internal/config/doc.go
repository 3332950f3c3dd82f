// Package config loads, validates, and defaults the TOML configuration that
// drives every pipeline component: feed lists, relevance keyword tables, tone
// rules, retry budgets, channel credentials, and run limits.
package config
