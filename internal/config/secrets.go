package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/pelletier/go-toml/v2"
)

// ErrSecretNotFound is returned by Chain.Require when no provider has the key.
var ErrSecretNotFound = errors.New("secret not found")

// Secret keys understood by ResolveSecrets.
const (
	KeyOAuthClientID     = "GOOGLE_OAUTH_CLIENT_ID"
	KeyOAuthClientSecret = "GOOGLE_OAUTH_CLIENT_SECRET"
	KeyRedirectURI       = "REDIRECT_URI"
	KeyCredentialsJSON   = "GOOGLE_APPLICATION_CREDENTIALS_JSON"
	KeySnowflakeConn     = "SNOWFLAKE_CONNECTION_STRING"
	KeyRedisURL          = "REDIS_URL"
)

// Provider is one source of secrets.
type Provider interface {
	Name() string
	// Lookup returns the value and whether the provider has it.
	Lookup(ctx context.Context, key string) (string, bool, error)
}

// Chain consults providers in order; the first hit wins.
type Chain []Provider

// Lookup walks the chain. A failing provider is logged and skipped.
func (c Chain) Lookup(ctx context.Context, key string) (string, bool) {
	for _, p := range c {
		v, ok, err := p.Lookup(ctx, key)
		if err != nil {
			log.Printf("Secrets: %s lookup of %s failed: %v", p.Name(), key, err)
			continue
		}
		if ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// Require is Lookup that fails with ErrSecretNotFound.
func (c Chain) Require(ctx context.Context, key string) (string, error) {
	if v, ok := c.Lookup(ctx, key); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
}

// ResolveSecrets fills credentials the config left empty.
func ResolveSecrets(ctx context.Context, cfg *Config, chain Chain) {
	fill := func(dst *string, key string) {
		if *dst != "" {
			return
		}
		if v, ok := chain.Lookup(ctx, key); ok {
			*dst = v
		}
	}
	fill(&cfg.Auth.GoogleClientID, KeyOAuthClientID)
	fill(&cfg.Auth.GoogleClientSecret, KeyOAuthClientSecret)
	fill(&cfg.Auth.RedirectURL, KeyRedirectURI)
	fill(&cfg.Warehouse.CredentialsJSON, KeyCredentialsJSON)
	fill(&cfg.Warehouse.ConnectionString, KeySnowflakeConn)
	fill(&cfg.Cache.RedisURL, KeyRedisURL)
}

// DefaultChain is environment, then the S3 object (when a bucket is
// configured), then the secrets file.
func DefaultChain(ctx context.Context, cfg SecretsConfig) Chain {
	chain := Chain{EnvProvider{}}
	if cfg.S3Bucket != "" {
		p, err := NewS3Provider(ctx, cfg.S3Bucket, cfg.S3Key, cfg.S3Region)
		if err != nil {
			log.Printf("Secrets: S3 provider disabled: %v", err)
		} else {
			chain = append(chain, p)
		}
	}
	chain = append(chain, NewTOMLProvider(cfg.File))
	return chain
}

// EnvProvider reads process environment variables.
type EnvProvider struct{}

func (EnvProvider) Name() string { return "env" }

func (EnvProvider) Lookup(_ context.Context, key string) (string, bool, error) {
	v, ok := os.LookupEnv(key)
	return v, ok, nil
}

// S3Getter is the part of the S3 client the provider needs.
type S3Getter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Provider reads a JSON object of secrets once and serves lookups from it.
type S3Provider struct {
	client S3Getter
	bucket string
	key    string

	once   sync.Once
	values map[string]interface{}
	err    error
}

// NewS3Provider builds the S3 client from the default AWS credential chain.
func NewS3Provider(ctx context.Context, bucket, key, region string) (*S3Provider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for secrets: %w", err)
	}
	return NewS3ProviderWithClient(s3.NewFromConfig(awsCfg), bucket, key), nil
}

// NewS3ProviderWithClient uses an existing client.
func NewS3ProviderWithClient(client S3Getter, bucket, key string) *S3Provider {
	return &S3Provider{client: client, bucket: bucket, key: key}
}

func (p *S3Provider) Name() string { return "s3://" + p.bucket + "/" + p.key }

func (p *S3Provider) Lookup(ctx context.Context, key string) (string, bool, error) {
	p.once.Do(func() { p.values, p.err = p.fetch(ctx) })
	if p.err != nil {
		return "", false, p.err
	}
	v, ok := lookupNested(p.values, key)
	return v, ok, nil
}

func (p *S3Provider) fetch(ctx context.Context) (map[string]interface{}, error) {
	resp, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(p.key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return map[string]interface{}{}, nil
		}
		return nil, fmt.Errorf("S3 GetObject %s/%s: %w", p.bucket, p.key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading S3 secrets object: %w", err)
	}
	values := make(map[string]interface{})
	if err := json.Unmarshal(body, &values); err != nil {
		return nil, fmt.Errorf("parsing S3 secrets object: %w", err)
	}
	return values, nil
}

// TOMLProvider reads a Streamlit-style secrets.toml. A missing file is empty.
type TOMLProvider struct {
	path string

	once   sync.Once
	values map[string]interface{}
	err    error
}

// NewTOMLProvider reads path lazily on first lookup.
func NewTOMLProvider(path string) *TOMLProvider {
	return &TOMLProvider{path: path}
}

func (p *TOMLProvider) Name() string { return p.path }

func (p *TOMLProvider) Lookup(_ context.Context, key string) (string, bool, error) {
	p.once.Do(func() { p.values, p.err = p.read() })
	if p.err != nil {
		return "", false, p.err
	}
	v, ok := lookupNested(p.values, key)
	return v, ok, nil
}

func (p *TOMLProvider) read() (map[string]interface{}, error) {
	f, err := os.Open(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]interface{}{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values := make(map[string]interface{})
	if err := toml.NewDecoder(f).Decode(&values); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", p.path, err)
	}
	return values, nil
}

// lookupNested checks the top level first, then one level of nested tables
// in name order, so the first table alphabetically wins a duplicated key.
// Table values are returned JSON encoded, which is how service-account
// credentials are usually stored.
func lookupNested(values map[string]interface{}, key string) (string, bool) {
	if v, ok := values[key]; ok {
		return stringify(v)
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		table, ok := values[name].(map[string]interface{})
		if !ok {
			continue
		}
		if inner, ok := table[key]; ok {
			return stringify(inner)
		}
	}
	return "", false
}

func stringify(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(t), true
	case map[string]interface{}:
		b, err := json.Marshal(t)
		if err != nil {
			return "", false
		}
		return string(b), true
	default:
		return fmt.Sprint(t), true
	}
}
