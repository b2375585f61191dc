package factory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"go-roi-inspector/internal/decode"
	apperrors "go-roi-inspector/internal/errors"
	"go-roi-inspector/internal/storage"
	"go-roi-inspector/pkg/validation"
)

// StorageType represents different types of template storage backends
type StorageType string

const (
	// LocalStorage for plain paths and file:// references
	LocalStorage StorageType = "file"
	// HTTPStorage for http:// and https:// references
	HTTPStorage StorageType = "http"
	// AzureStorage for azblob://container/blob references
	AzureStorage StorageType = "azblob"
)

// StorageTypeFor picks the backend that serves ref.
func StorageTypeFor(ref string) StorageType {
	if !validation.IsRemote(ref) {
		return LocalStorage
	}
	u, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return LocalStorage
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return HTTPStorage
	case "azblob":
		return AzureStorage
	default:
		return LocalStorage
	}
}

// DecoderFactory creates image decoders
type DecoderFactory interface {
	CreateDecoder(kind decode.Kind) (decode.Decoder, error)
}

// StorageFactory creates template stores
type StorageFactory interface {
	CreateStorage(storageType StorageType) (storage.TemplateStore, error)
}

// decoderFactory implements DecoderFactory
type decoderFactory struct {
	command string
	timeout time.Duration
}

// NewDecoderFactory creates a decoder factory. command and timeout only
// apply to the exec decoder.
func NewDecoderFactory(command string, timeout time.Duration) DecoderFactory {
	return &decoderFactory{command: command, timeout: timeout}
}

// CreateDecoder creates a decoder of the given kind; empty means builtin.
func (f *decoderFactory) CreateDecoder(kind decode.Kind) (decode.Decoder, error) {
	switch kind {
	case decode.KindBuiltin, "":
		return decode.NewImageDecoder(), nil
	case decode.KindExec:
		return decode.NewCommandDecoder(f.command, f.timeout)
	default:
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unsupported decoder: %s", kind), nil)
	}
}

// AzureCredentials are the shared-key settings of the blob backend.
type AzureCredentials struct {
	AccountName string
	AccountKey  string
	Endpoint    string
}

// storageFactory implements StorageFactory
type storageFactory struct {
	httpTimeout time.Duration
	azure       AzureCredentials
}

// NewStorageFactory creates a storage factory
func NewStorageFactory(httpTimeout time.Duration, azure AzureCredentials) StorageFactory {
	return &storageFactory{httpTimeout: httpTimeout, azure: azure}
}

// CreateStorage creates a template store for the given backend
func (f *storageFactory) CreateStorage(storageType StorageType) (storage.TemplateStore, error) {
	switch storageType {
	case LocalStorage:
		return storage.NewFileStore(), nil
	case HTTPStorage:
		return storage.NewHTTPTemplateStore(f.httpTimeout), nil
	case AzureStorage:
		if f.azure.AccountName == "" {
			return nil, apperrors.WithHint(
				apperrors.NewInvalidInputError("azure blob storage is not configured", nil),
				"set storage.azure.account_name and storage.azure.account_key")
		}
		return storage.NewAzureBlobStore(f.azure.AccountName, f.azure.AccountKey, f.azure.Endpoint)
	default:
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("unsupported storage type: %s", storageType), nil)
	}
}

// TemplateRouter is a TemplateStore that dispatches each reference to the
// backend its scheme names. Remote references are validated first and
// backends are created on first use.
type TemplateRouter struct {
	factory   StorageFactory
	validator *validation.URLValidator

	mu     sync.Mutex
	stores map[StorageType]storage.TemplateStore
}

// NewTemplateRouter creates a router over factory
func NewTemplateRouter(factory StorageFactory, validator *validation.URLValidator) *TemplateRouter {
	if validator == nil {
		validator = validation.NewURLValidator()
	}
	return &TemplateRouter{
		factory:   factory,
		validator: validator,
		stores:    make(map[StorageType]storage.TemplateStore),
	}
}

func (r *TemplateRouter) ReadTemplate(ctx context.Context, ref string) ([]byte, error) {
	store, ref, err := r.route(ref)
	if err != nil {
		return nil, err
	}
	return store.ReadTemplate(ctx, ref)
}

func (r *TemplateRouter) WriteTemplate(ctx context.Context, ref string, data []byte) error {
	store, ref, err := r.route(ref)
	if err != nil {
		return err
	}
	return store.WriteTemplate(ctx, ref, data)
}

// route returns the backend for ref and the reference that backend expects.
func (r *TemplateRouter) route(ref string) (storage.TemplateStore, string, error) {
	kind := StorageTypeFor(ref)
	switch kind {
	case LocalStorage:
		ref = strings.TrimPrefix(strings.TrimSpace(ref), "file://")
		if ref == "" {
			return nil, "", apperrors.NewInvalidInputError("template path cannot be empty", nil)
		}
	default:
		if err := r.validator.ValidateTemplateURL(ref); err != nil {
			return nil, "", err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if store, ok := r.stores[kind]; ok {
		return store, ref, nil
	}
	store, err := r.factory.CreateStorage(kind)
	if err != nil {
		return nil, "", err
	}
	r.stores[kind] = store
	return store, ref, nil
}

// ComponentFactory combines all factories
type ComponentFactory struct {
	DecoderFactory DecoderFactory
	StorageFactory StorageFactory
}

// NewComponentFactory creates a new component factory
func NewComponentFactory(decoders DecoderFactory, stores StorageFactory) *ComponentFactory {
	return &ComponentFactory{
		DecoderFactory: decoders,
		StorageFactory: stores,
	}
}
