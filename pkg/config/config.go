package config

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/andrej220/wexec/pkg/config/configstore"
	"github.com/andrej220/wexec/pkg/config/filestore"
	"github.com/andrej220/wexec/pkg/config/mongostore"
	"github.com/go-playground/validator/v10"
)

type StoreType int

const (
	FileStore StoreType = iota
	MongoStore
)

const (
	DefaultAttribute     = "fqdn"
	DefaultAuthProtocol  = "negotiate"
	DefaultTransport     = "plaintext"
	DefaultTLSVerifyMode = "verify_peer"
)

var (
	ErrInvalidStoreType   = errors.New("invalid store type")
	ErrInvalidReturnCodes = errors.New("invalid return codes")
)

type FileConfig struct {
	Path string `yaml:"path" json:"path"`
}

type MongoConfig struct {
	URI      string `yaml:"uri" json:"uri"`
	DBName   string `yaml:"dbName" json:"dbName"`
	CollName string `yaml:"collName" json:"collName"`
	ID       string `yaml:"id" json:"id"` // document ID
}

func NewStore(storeType StoreType, cfg any) (configstore.ConfigStore, error) {
	switch storeType {
	case FileStore:
		fileCfg, ok := cfg.(*FileConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for file store, expected *FileConfig")
		}
		return filestore.New(fileCfg.Path), nil
	case MongoStore:
		mongoCfg, ok := cfg.(*MongoConfig)
		if !ok {
			return nil, fmt.Errorf("invalid config type for mongo store, expected *MongoConfig")
		}
		return mongostore.New(mongoCfg.URI, mongoCfg.DBName, mongoCfg.CollName, mongoCfg.ID)
	default:
		return nil, ErrInvalidStoreType
	}
}

type InventoryConfig struct {
	Kind       string `yaml:"kind,omitempty" toml:"kind" json:"kind,omitempty" bson:"kind,omitempty" validate:"omitempty,oneof=file mongo"`
	Path       string `yaml:"path,omitempty" toml:"path" json:"path,omitempty" bson:"path,omitempty" validate:"required_if=Kind file"`
	URI        string `yaml:"uri,omitempty" toml:"uri" json:"uri,omitempty" bson:"uri,omitempty" validate:"required_if=Kind mongo"`
	DBName     string `yaml:"dbName,omitempty" toml:"db_name" json:"dbName,omitempty" bson:"dbName,omitempty" validate:"required_if=Kind mongo"`
	Collection string `yaml:"collection,omitempty" toml:"collection" json:"collection,omitempty" bson:"collection,omitempty" validate:"required_if=Kind mongo"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty" toml:"brokers" json:"brokers,omitempty" bson:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty" toml:"topic" json:"topic,omitempty" bson:"topic,omitempty" validate:"required_with=Brokers"`
}

type MongoSinkConfig struct {
	URI        string `yaml:"uri,omitempty" toml:"uri" json:"uri,omitempty" bson:"uri,omitempty"`
	DBName     string `yaml:"dbName,omitempty" toml:"db_name" json:"dbName,omitempty" bson:"dbName,omitempty" validate:"required_with=URI"`
	Collection string `yaml:"collection,omitempty" toml:"collection" json:"collection,omitempty" bson:"collection,omitempty" validate:"required_with=URI"`
}

// ReportConfig selects where per-host outcomes are shipped. Every
// configured sink receives every record.
type ReportConfig struct {
	File  string          `yaml:"file,omitempty" toml:"file" json:"file,omitempty" bson:"file,omitempty"`
	Kafka KafkaConfig     `yaml:"kafka,omitempty" toml:"kafka" json:"kafka,omitempty" bson:"kafka,omitempty"`
	Mongo MongoSinkConfig `yaml:"mongo,omitempty" toml:"mongo" json:"mongo,omitempty" bson:"mongo,omitempty"`
}

// Settings is the assembled, immutable configuration of one invocation.
// Components receive it (or values derived from it) as a parameter.
type Settings struct {
	Manual                  bool
	Attribute               string `validate:"required"`
	User                    string
	Password                string
	AuthProtocol            string
	Transport               string
	Port                    *int
	OperationTimeoutMinutes *int
	TLSVerifyMode           string
	TrustAnchorPath         string
	AcceptedReturnCodes     []int `validate:"required,min=1"`
	SuppressAuthFailure     bool
	Concurrency             int `validate:"min=0"`
	ConnectRetries          int `validate:"min=0,max=10"`
	Inventory               InventoryConfig
	Report                  ReportConfig
}

// Defaults returns the settings used when nothing is persisted or overridden.
func Defaults() Settings {
	return Settings{
		Attribute:           DefaultAttribute,
		AuthProtocol:        DefaultAuthProtocol,
		Transport:           DefaultTransport,
		TLSVerifyMode:       DefaultTLSVerifyMode,
		AcceptedReturnCodes: []int{0},
	}
}

// Overlay is a partial Settings: nil fields are left untouched by Assemble.
// Persisted settings and command line overrides are both overlays.
type Overlay struct {
	Manual                  *bool            `yaml:"manual,omitempty" toml:"manual" json:"manual,omitempty" bson:"manual,omitempty"`
	Attribute               *string          `yaml:"attribute,omitempty" toml:"attribute" json:"attribute,omitempty" bson:"attribute,omitempty"`
	User                    *string          `yaml:"user,omitempty" toml:"user" json:"user,omitempty" bson:"user,omitempty"`
	Password                *string          `yaml:"password,omitempty" toml:"password" json:"password,omitempty" bson:"password,omitempty"`
	AuthProtocol            *string          `yaml:"auth_protocol,omitempty" toml:"auth_protocol" json:"auth_protocol,omitempty" bson:"auth_protocol,omitempty"`
	Transport               *string          `yaml:"transport,omitempty" toml:"transport" json:"transport,omitempty" bson:"transport,omitempty"`
	Port                    *int             `yaml:"port,omitempty" toml:"port" json:"port,omitempty" bson:"port,omitempty"`
	OperationTimeoutMinutes *int             `yaml:"session_timeout,omitempty" toml:"session_timeout" json:"session_timeout,omitempty" bson:"session_timeout,omitempty"`
	TLSVerifyMode           *string          `yaml:"tls_verify_mode,omitempty" toml:"tls_verify_mode" json:"tls_verify_mode,omitempty" bson:"tls_verify_mode,omitempty"`
	TrustAnchorPath         *string          `yaml:"ca_trust_file,omitempty" toml:"ca_trust_file" json:"ca_trust_file,omitempty" bson:"ca_trust_file,omitempty"`
	AcceptedReturnCodes     []int            `yaml:"returns,omitempty" toml:"returns" json:"returns,omitempty" bson:"returns,omitempty"`
	SuppressAuthFailure     *bool            `yaml:"suppress_auth_failure,omitempty" toml:"suppress_auth_failure" json:"suppress_auth_failure,omitempty" bson:"suppress_auth_failure,omitempty"`
	Concurrency             *int             `yaml:"concurrency,omitempty" toml:"concurrency" json:"concurrency,omitempty" bson:"concurrency,omitempty"`
	ConnectRetries          *int             `yaml:"connect_retries,omitempty" toml:"connect_retries" json:"connect_retries,omitempty" bson:"connect_retries,omitempty"`
	Inventory               *InventoryConfig `yaml:"inventory,omitempty" toml:"inventory" json:"inventory,omitempty" bson:"inventory,omitempty"`
	Report                  *ReportConfig    `yaml:"report,omitempty" toml:"report" json:"report,omitempty" bson:"report,omitempty"`
}

// LoadOverlay reads persisted settings from a store.
func LoadOverlay(store configstore.ConfigStore) (Overlay, error) {
	var o Overlay
	if err := store.Load(&o); err != nil {
		return Overlay{}, fmt.Errorf("load settings: %w", err)
	}
	return o, nil
}

// Assemble applies overlays to base in order; later overlays win.
// base is not modified.
func Assemble(base Settings, overlays ...Overlay) Settings {
	s := base
	s.AcceptedReturnCodes = slices.Clone(base.AcceptedReturnCodes)
	s.Port = cloneInt(base.Port)
	s.OperationTimeoutMinutes = cloneInt(base.OperationTimeoutMinutes)
	s.Report.Kafka.Brokers = slices.Clone(base.Report.Kafka.Brokers)

	for _, o := range overlays {
		setValue(&s.Manual, o.Manual)
		setValue(&s.Attribute, o.Attribute)
		setValue(&s.User, o.User)
		setValue(&s.Password, o.Password)
		setValue(&s.AuthProtocol, o.AuthProtocol)
		setValue(&s.Transport, o.Transport)
		setValue(&s.TLSVerifyMode, o.TLSVerifyMode)
		setValue(&s.TrustAnchorPath, o.TrustAnchorPath)
		setValue(&s.SuppressAuthFailure, o.SuppressAuthFailure)
		setValue(&s.Concurrency, o.Concurrency)
		setValue(&s.ConnectRetries, o.ConnectRetries)
		if o.Port != nil {
			s.Port = cloneInt(o.Port)
		}
		if o.OperationTimeoutMinutes != nil {
			s.OperationTimeoutMinutes = cloneInt(o.OperationTimeoutMinutes)
		}
		if o.AcceptedReturnCodes != nil {
			s.AcceptedReturnCodes = dedupe(o.AcceptedReturnCodes)
		}
		if o.Inventory != nil {
			mergeInventory(&s.Inventory, *o.Inventory)
		}
		if o.Report != nil {
			mergeReport(&s.Report, *o.Report)
		}
	}
	return s
}

var validate = validator.New()

// Validate checks the parts of Settings that no other component owns.
// Transport related fields are checked by the transport policy.
func Validate(s Settings) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// ParseReturnCodes parses a comma separated list such as "0,53".
func ParseReturnCodes(raw string) ([]int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty list", ErrInvalidReturnCodes)
	}
	var codes []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		code, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidReturnCodes, part)
		}
		codes = append(codes, code)
	}
	return dedupe(codes), nil
}

func setValue[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func dedupe(codes []int) []int {
	out := make([]int, 0, len(codes))
	for _, c := range codes {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}

func mergeInventory(dst *InventoryConfig, src InventoryConfig) {
	mergeString(&dst.Kind, src.Kind)
	mergeString(&dst.Path, src.Path)
	mergeString(&dst.URI, src.URI)
	mergeString(&dst.DBName, src.DBName)
	mergeString(&dst.Collection, src.Collection)
}

func mergeReport(dst *ReportConfig, src ReportConfig) {
	mergeString(&dst.File, src.File)
	if len(src.Kafka.Brokers) > 0 {
		dst.Kafka.Brokers = slices.Clone(src.Kafka.Brokers)
	}
	mergeString(&dst.Kafka.Topic, src.Kafka.Topic)
	mergeString(&dst.Mongo.URI, src.Mongo.URI)
	mergeString(&dst.Mongo.DBName, src.Mongo.DBName)
	mergeString(&dst.Mongo.Collection, src.Mongo.Collection)
}

func mergeString(dst *string, src string) {
	if strings.TrimSpace(src) != "" {
		*dst = src
	}
}
