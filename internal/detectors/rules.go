package detectors

import (
	"regexp"

	"github.com/redactyl/livegrab/internal/types"
	v "github.com/redactyl/livegrab/internal/validate"
)

// Rule is one entry of the pattern detector's table.
type Rule struct {
	ID   string
	Kind types.SecretKind
	Re   *regexp.Regexp
	// Group selects the submatch holding the secret; 0 means the whole match.
	Group      int
	Confidence float64
	// Context, when set, must match near the hit (same line, bounded window).
	Context *regexp.Regexp
	// Validate raises confidence when it accepts the value and lowers it otherwise.
	Validate func(string) bool
}

func re(s string) *regexp.Regexp { return regexp.MustCompile(s) }

var uriCreds = `[^\s:@/'"]*:[^\s@/'"]+@[^\s'"<>]+`

// rules is ordered: when two rules hit the same span with the same kind the
// earlier rule is credited.
var rules = []Rule{
	// cloud
	{ID: "aws_access_key", Kind: types.KindAPIKey, Re: re(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`), Confidence: 0.9, Validate: v.LooksLikeAWSAccessKey},
	{ID: "aws_secret_key", Kind: types.KindAPIKey, Re: re(`(?i)(aws_secret_access_key|aws_secret_key|secretaccesskey)["'\s:=]+([A-Za-z0-9/+=]{40})\b`), Group: 2, Confidence: 0.95, Validate: v.LooksLikeAWSSecretKey},
	{ID: "google_api_key", Kind: types.KindAPIKey, Re: re(`\bAIza[0-9A-Za-z_-]{35}\b`), Confidence: 0.9},
	{ID: "azure_storage_key", Kind: types.KindAPIKey, Re: re(`(?i)AccountName=[^;\s]+;AccountKey=([A-Za-z0-9+/=]{80,})`), Group: 1, Confidence: 0.95, Validate: v.IsBase64Std},
	{ID: "azure_sas_token", Kind: types.KindToken, Re: re(`https?://[A-Za-z0-9.-]+\.core\.windows\.net/[^?\s]*\?[^\s'"]*sig=[^\s&'"]+`), Confidence: 0.85},
	{ID: "digitalocean_pat", Kind: types.KindToken, Re: re(`\bdop_v1_[a-f0-9]{64}\b`), Confidence: 0.95},
	{ID: "heroku_api_key", Kind: types.KindAPIKey, Re: re(`(?i)heroku(?:[_\s-]*api[_\s-]*key)?["'\s:=]+([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})`), Group: 1, Confidence: 0.85},
	{ID: "databricks_pat", Kind: types.KindToken, Re: re(`\bdapi[a-f0-9]{32}(?:-\d)?\b`), Confidence: 0.85},
	{ID: "flyio_token", Kind: types.KindToken, Re: re(`\bflyv1_[A-Za-z0-9_-]{43,}`), Confidence: 0.9},
	{ID: "terraform_cloud_token", Kind: types.KindToken, Re: re(`\b[A-Za-z0-9]{14}\.atlasv1\.[A-Za-z0-9_-]{60,}`), Confidence: 0.95},

	// source hosting and registries
	{ID: "github_token", Kind: types.KindToken, Re: re(`\bg(?:hp|ho|hu|hs|hr)_[A-Za-z0-9]{36}\b`), Confidence: 0.95, Validate: v.LooksLikeGitHubToken},
	{ID: "github_fine_grained_pat", Kind: types.KindToken, Re: re(`\bgithub_pat_[A-Za-z0-9_]{82}\b`), Confidence: 0.95},
	{ID: "gitlab_token", Kind: types.KindToken, Re: re(`\bglpat-[A-Za-z0-9_-]{20}\b`), Confidence: 0.9},
	{ID: "npm_token", Kind: types.KindToken, Re: re(`\bnpm_[A-Za-z0-9]{36}\b`), Confidence: 0.9},
	{ID: "npmrc_auth_token", Kind: types.KindToken, Re: re(`:_authToken=([^\s'"]+)`), Group: 1, Confidence: 0.85},
	{ID: "pypi_token", Kind: types.KindToken, Re: re(`\bpypi-[A-Za-z0-9_-]{50,}`), Confidence: 0.9},
	{ID: "dockerhub_pat", Kind: types.KindToken, Re: re(`\bdckr_pat_[A-Za-z0-9_-]{27,64}`), Confidence: 0.9},
	{ID: "docker_config_auth", Kind: types.KindToken, Re: re(`"auth"\s*:\s*"([A-Za-z0-9+/=]{12,})"`), Group: 1, Confidence: 0.8, Validate: v.IsBase64Std},

	// SaaS
	{ID: "slack_token", Kind: types.KindToken, Re: re(`\bxox[abprs]-[A-Za-z0-9-]{10,200}`), Confidence: 0.9, Validate: v.LooksLikeSlackToken},
	{ID: "slack_webhook", Kind: types.KindToken, Re: re(`https://hooks\.slack\.com/services/[A-Z0-9]{9,}/[A-Z0-9]{9,}/[A-Za-z0-9]{24,}`), Confidence: 0.9},
	{ID: "discord_webhook", Kind: types.KindToken, Re: re(`https://(?:ptb\.|canary\.)?discord(?:app)?\.com/api/webhooks/\d+/[A-Za-z0-9_-]+`), Confidence: 0.9},
	{ID: "telegram_bot_token", Kind: types.KindToken, Re: re(`\b\d{8,10}:AA[A-Za-z0-9_-]{33}\b`), Confidence: 0.85},
	{ID: "stripe_secret", Kind: types.KindAPIKey, Re: re(`\b[rs]k_live_[A-Za-z0-9]{24,99}\b`), Confidence: 0.95, Validate: v.LooksLikeStripeKey},
	{ID: "stripe_webhook_secret", Kind: types.KindToken, Re: re(`\bwhsec_[A-Za-z0-9]{16,}\b`), Confidence: 0.85},
	{ID: "sendgrid_api_key", Kind: types.KindAPIKey, Re: re(`\bSG\.[A-Za-z0-9_-]{16,32}\.[A-Za-z0-9_-]{32,64}\b`), Confidence: 0.95},
	{ID: "mailgun_api_key", Kind: types.KindAPIKey, Re: re(`\bkey-[0-9a-f]{32}\b`), Confidence: 0.8},
	{ID: "twilio_api_key", Kind: types.KindAPIKey, Re: re(`\bSK[0-9a-fA-F]{32}\b`), Confidence: 0.6, Context: re(`(?i)twilio|tw[_-]?(?:auth|token|sid)`)},
	{ID: "shopify_token", Kind: types.KindToken, Re: re(`\bshp(?:at|ca|pa|ss)_[a-fA-F0-9]{32}\b`), Confidence: 0.9},
	{ID: "sentry_auth_token", Kind: types.KindToken, Re: re(`\bsntry[su]_[A-Za-z0-9_=-]{40,}`), Confidence: 0.9},
	{ID: "newrelic_api_key", Kind: types.KindAPIKey, Re: re(`\bNRAK-[A-Z0-9]{27}\b`), Confidence: 0.9},
	{ID: "linear_api_key", Kind: types.KindAPIKey, Re: re(`\blin_api_[A-Za-z0-9]{40}\b`), Confidence: 0.9},
	{ID: "datadog_api_key", Kind: types.KindAPIKey, Re: re(`\b[0-9a-f]{32}\b`), Confidence: 0.6, Context: re(`(?i)datadog|\bdd_api_key\b`)},
	{ID: "render_api_key", Kind: types.KindAPIKey, Re: re(`\brnd_[A-Za-z0-9]{32,}\b`), Confidence: 0.95},
	{ID: "notion_api_key", Kind: types.KindAPIKey, Re: re(`\bsecret_[A-Za-z0-9]{40,}\b`), Confidence: 0.9},
	{ID: "posthog_personal_key", Kind: types.KindAPIKey, Re: re(`\bphx_[A-Za-z0-9]{32}\b`), Confidence: 0.95},
	{ID: "snyk_token", Kind: types.KindToken, Re: re(`\bsnyk_[A-Za-z0-9]{30,}\b`), Confidence: 0.95},
	{ID: "airtable_pat", Kind: types.KindToken, Re: re(`\bpat[A-Za-z0-9]{14}\.[a-f0-9]{64}\b`), Confidence: 0.9},
	{ID: "vercel_token", Kind: types.KindToken, Re: re(`\bvercel_[A-Za-z0-9]{24,}\b`), Confidence: 0.9},
	{ID: "netlify_token", Kind: types.KindToken, Re: re(`\bnf_[A-Za-z0-9]{20,}\b`), Confidence: 0.85},
	{ID: "mapbox_secret_token", Kind: types.KindToken, Re: re(`\bsk\.[A-Za-z0-9]{60,}\.[A-Za-z0-9_-]{20,}`), Confidence: 0.9},
	{ID: "okta_api_token", Kind: types.KindToken, Re: re(`\bSSWS\s+([A-Za-z0-9._-]{40,})`), Group: 1, Confidence: 0.9, Context: re(`(?i)ssws|okta`)},
	{ID: "cloudflare_token", Kind: types.KindToken, Re: re(`\b[A-Za-z0-9_-]{40}\b`), Confidence: 0.6, Context: re(`(?i)cloudflare|\bCF_API_(?:TOKEN|KEY)\b`)},
	{ID: "supabase_service_role_key", Kind: types.KindAPIKey, Re: re(`(?i)\bSUPABASE_SERVICE_ROLE_KEY["']?\s*[:=]\s*["']?([^'"\s]{16,})`), Group: 1, Confidence: 0.9},
	{ID: "hasura_admin_secret", Kind: types.KindPassword, Re: re(`(?i)\bHASURA_GRAPHQL_ADMIN_SECRET["']?\s*[:=]\s*["']?([^'"\s]{16,})`), Group: 1, Confidence: 0.9},
	{ID: "sentry_dsn", Kind: types.KindToken, Re: re(`https://[0-9a-f]{32}@o\d+\.ingest\.(?:[a-z]{2}\.)?sentry\.io/\d+`), Confidence: 0.8},
	{ID: "cloudinary_url_creds", Kind: types.KindConnectionString, Re: re(`\bcloudinary://\d{6,}:[A-Za-z0-9_-]{10,}@[A-Za-z0-9_-]+`), Confidence: 0.95},
	{ID: "prisma_data_proxy_url", Kind: types.KindConnectionString, Re: re(`\bprisma://[A-Za-z0-9._-]+/\?api_key=[^\s'"<>]+`), Confidence: 0.9},

	// AI providers
	{ID: "anthropic_api_key", Kind: types.KindAPIKey, Re: re(`\bsk-ant-(?:api|admin)\d{2}-[A-Za-z0-9_-]{80,}`), Confidence: 0.95},
	{ID: "openrouter_api_key", Kind: types.KindAPIKey, Re: re(`\bsk-or-v1-[a-f0-9]{64}\b`), Confidence: 0.95},
	{ID: "stability_api_key", Kind: types.KindAPIKey, Re: re(`\bsk-[A-Za-z0-9]{48}\b`), Confidence: 0.7, Context: re(`(?i)stability`)},
	{ID: "openai_api_key", Kind: types.KindAPIKey, Re: re(`\bsk-(?:proj-|svcacct-|admin-)?[A-Za-z0-9_-]{20,}T3BlbkFJ[A-Za-z0-9_-]{20,}`), Confidence: 0.95},
	{ID: "openai_legacy_key", Kind: types.KindAPIKey, Re: re(`\bsk-[A-Za-z0-9]{40,64}\b`), Confidence: 0.75, Validate: v.LooksLikeOpenAIKey},
	{ID: "groq_api_key", Kind: types.KindAPIKey, Re: re(`\bgsk_[A-Za-z0-9]{52}\b`), Confidence: 0.9},
	{ID: "huggingface_token", Kind: types.KindToken, Re: re(`\bhf_[A-Za-z0-9]{34,40}\b`), Confidence: 0.9},
	{ID: "replicate_api_token", Kind: types.KindToken, Re: re(`\br8_[A-Za-z0-9]{37}\b`), Confidence: 0.9},
	{ID: "perplexity_api_key", Kind: types.KindAPIKey, Re: re(`\bpplx-[A-Za-z0-9]{48}\b`), Confidence: 0.9},
	{ID: "mistral_api_key", Kind: types.KindAPIKey, Re: re(`\b[A-Za-z0-9]{32}\b`), Confidence: 0.6, Context: re(`(?i)mistral`)},
	{ID: "cohere_api_key", Kind: types.KindAPIKey, Re: re(`\b[A-Za-z0-9]{40}\b`), Confidence: 0.6, Context: re(`(?i)\bcohere|\bCO_API_KEY\b`)},
	{ID: "pinecone_api_key", Kind: types.KindAPIKey, Re: re(`\b(?:pcsk_[A-Za-z0-9_]{50,}|[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\b`), Confidence: 0.65, Context: re(`(?i)pinecone`)},
	{ID: "wandb_api_key", Kind: types.KindAPIKey, Re: re(`\b[0-9a-f]{40}\b`), Confidence: 0.65, Context: re(`(?i)wandb|weights\s*&\s*biases`)},
	{ID: "kaggle_json_key", Kind: types.KindAPIKey, Re: re(`"key"\s*:\s*"([0-9a-f]{32})"`), Group: 1, Confidence: 0.7, Context: re(`"username"`)},

	// generic tokens
	{ID: "jwt", Kind: types.KindToken, Re: re(`\beyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]*`), Confidence: 0.7, Validate: v.IsJWTStructure},
	{ID: "bearer_token", Kind: types.KindToken, Re: re(`(?i)\bbearer\s+([A-Za-z0-9._~+/-]{20,}=*)`), Group: 1, Confidence: 0.65},

	// connection strings
	{ID: "postgres_uri_creds", Kind: types.KindConnectionString, Re: re(`\bpostgres(?:ql)?://` + uriCreds), Confidence: 0.9, Validate: v.HasURLPassword},
	{ID: "mysql_uri_creds", Kind: types.KindConnectionString, Re: re(`\bmysql://` + uriCreds), Confidence: 0.9, Validate: v.HasURLPassword},
	{ID: "mongodb_uri_creds", Kind: types.KindConnectionString, Re: re(`\bmongodb(?:\+srv)?://` + uriCreds), Confidence: 0.9, Validate: v.HasURLPassword},
	{ID: "redis_uri_creds", Kind: types.KindConnectionString, Re: re(`\bredis(?:s|\+ssl)?://` + uriCreds), Confidence: 0.85, Validate: v.HasURLPassword},
	{ID: "amqp_uri_creds", Kind: types.KindConnectionString, Re: re(`\bamqps?://` + uriCreds), Confidence: 0.85, Validate: v.HasURLPassword},
	{ID: "sqlserver_uri_creds", Kind: types.KindConnectionString, Re: re(`\bsqlserver://` + uriCreds), Confidence: 0.85, Validate: v.HasURLPassword},
	{ID: "ado_connection_string", Kind: types.KindConnectionString, Re: re(`(?i)\b(?:server|data source|host)=[^;\r\n]+;(?:[^;\r\n]*;){0,8}?\s*(?:password|pwd)=[^;\r\n]+;?`), Confidence: 0.85},
	{ID: "url_basic_auth", Kind: types.KindConnectionString, Re: re(`\bhttps?://[^\s:@/'"]+:[^\s@/'"]+@[A-Za-z0-9.-]+[^\s'"<>]*`), Confidence: 0.75, Validate: v.HasURLPassword},

	// passwords
	{ID: "password_assignment", Kind: types.KindPassword, Re: re(`(?i)(?:password|passwd)[A-Za-z_]*["']?\s*[:=]\s*["']?([^\s"';,]{6,128})`), Group: 1, Confidence: 0.6},
}

// Rules returns a copy of the built-in pattern table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}
