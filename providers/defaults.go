package providers

import (
	"gpu-catalog/pkg/platform"
	"gpu-catalog/providers/aws"
	"gpu-catalog/providers/latitude"
	"gpu-catalog/providers/leadergpu"
	"gpu-catalog/providers/linode"
	"gpu-catalog/providers/scraper"
)

// Config carries the credentials and knobs the built-in collectors share.
// Provider credentials always come from the environment, never from flags.
type Config struct {
	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string
	AWSRegion     string
}

// DefaultConfig reads collector settings from the environment.
func DefaultConfig() Config {
	return Config{
		OpenAIAPIKey:  platform.GetEnv("OPENAI_API_KEY", ""),
		OpenAIModel:   platform.GetEnv("CATALOG_OPENAI_MODEL", scraper.DefaultModel),
		OpenAIBaseURL: platform.GetEnv("OPENAI_BASE_URL", ""),
		AWSRegion:     platform.GetEnv("CATALOG_AWS_REGION", ""),
	}
}

// DefaultRegistry wires every built-in collector. The page collectors share
// one extractor so the chat model is only initialized once per run.
func DefaultRegistry(cfg Config) *Registry {
	ex := scraper.NewExtractor(scraper.Config{
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
		BaseURL: cfg.OpenAIBaseURL,
	})

	r := NewRegistry()
	r.Register(aws.New(cfg.AWSRegion))
	r.Register(scraper.NewCrusoe(ex))
	r.Register(scraper.NewGenesisCloud(ex))
	r.Register(latitude.New())
	r.Register(leadergpu.New())
	r.Register(linode.New())
	r.Register(scraper.NewScaleway(ex))
	r.Register(scraper.NewSeeweb(ex))

	r.RegisterAlias("akamai", "linode")
	r.RegisterAlias("genesis", "genesiscloud")

	return r
}
