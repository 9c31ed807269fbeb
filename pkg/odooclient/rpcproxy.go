// rpcproxy.go — a thin XML-RPC client wrapping the ERP's common/object/db
// endpoints, grounded on the teacher's client.go connection bootstrap and
// crud.go's cancellation-aware call pattern.
package odooclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kolo/xmlrpc"
)

// RpcProxy is a function-level abstraction over the ERP's XML-RPC surface.
// It holds no session state of its own (that belongs to Connection); it only
// knows how to dial each endpoint and perform a single cancellable call.
type RpcProxy struct {
	baseURL    string
	transport  *http.Transport
	common     *xmlrpc.Client
	object     *xmlrpc.Client
	db         *xmlrpc.Client
}

// NewRpcProxy dials the three XML-RPC endpoints under baseURL. httpClient's
// Transport (if an *http.Transport) is reused so TLS settings configured by
// the caller apply uniformly; a nil httpClient falls back to
// http.DefaultTransport.
func NewRpcProxy(baseURL string, httpClient *http.Client) (*RpcProxy, error) {
	tr := http.DefaultTransport.(*http.Transport)
	if httpClient != nil {
		if custom, ok := httpClient.Transport.(*http.Transport); ok && custom != nil {
			tr = custom
		}
	}

	common, err := xmlrpc.NewClient(baseURL+"/xmlrpc/2/common", tr)
	if err != nil {
		return nil, fmt.Errorf("odooclient: failed to dial common endpoint: %w", err)
	}
	object, err := xmlrpc.NewClient(baseURL+"/xmlrpc/2/object", tr)
	if err != nil {
		common.Close()
		return nil, fmt.Errorf("odooclient: failed to dial object endpoint: %w", err)
	}
	db, err := xmlrpc.NewClient(baseURL+"/xmlrpc/2/db", tr)
	if err != nil {
		common.Close()
		object.Close()
		return nil, fmt.Errorf("odooclient: failed to dial db endpoint: %w", err)
	}

	return &RpcProxy{baseURL: baseURL, transport: tr, common: common, object: object, db: db}, nil
}

// Close releases the underlying XML-RPC client connections.
func (p *RpcProxy) Close() {
	if p.common != nil {
		p.common.Close()
	}
	if p.object != nil {
		p.object.Close()
	}
	if p.db != nil {
		p.db.Close()
	}
}

// callCancellable runs fn in a goroutine and returns its error, honoring
// ctx's cancellation — the same goroutine+channel+select idiom as the
// teacher's executeRPC, extracted here so every RpcProxy method shares it.
func callCancellable(ctx context.Context, fn func() error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// ServerVersion is the parsed reply of the ERP's common.version RPC.
type ServerVersion struct {
	ServerVersion   string `xmlrpc:"server_version"`
	ProtocolVersion int    `xmlrpc:"protocol_version"`
}

// Version calls common.version.
func (p *RpcProxy) Version(ctx context.Context) (*ServerVersion, error) {
	var reply map[string]interface{}
	err := callCancellable(ctx, func() error {
		return p.common.Call("version", nil, &reply)
	})
	if err != nil {
		return nil, parseRPCFault(err)
	}

	version := &ServerVersion{}
	if v, ok := reply["server_version"].(string); ok {
		version.ServerVersion = v
	}
	if v, ok := reply["protocol_version"].(int64); ok {
		version.ProtocolVersion = int(v)
	}
	return version, nil
}

// Authenticate calls common.authenticate. A zero return value means the ERP
// rejected the credentials; it is not itself an error.
func (p *RpcProxy) Authenticate(ctx context.Context, db, user, credential string) (int64, error) {
	var uid int64
	err := callCancellable(ctx, func() error {
		return p.common.Call("authenticate", []interface{}{db, user, credential, map[string]interface{}{}}, &uid)
	})
	if err != nil {
		return 0, parseRPCFault(err)
	}
	return uid, nil
}

// ListDatabases calls db.list. On multi-tenant servers this may fail with
// "Access Denied"; the failure is returned as an error, and selectDatabase
// reports it as a connection error. No system-info lookup is attempted as a
// fallback.
func (p *RpcProxy) ListDatabases(ctx context.Context) ([]string, error) {
	var databases []string
	err := callCancellable(ctx, func() error {
		return p.db.Call("list", nil, &databases)
	})
	if err != nil {
		return nil, parseRPCFault(err)
	}
	return databases, nil
}

// ExecuteKW calls object.execute_kw(db, uid, credential, model, method,
// positional, kwargs) and unmarshals the reply into reply.
func (p *RpcProxy) ExecuteKW(ctx context.Context, db string, uid int64, credential, model, method string, positional []interface{}, kwargs map[string]interface{}, reply interface{}) error {
	callArgs := []interface{}{db, uid, credential, model, method, positional}
	if kwargs == nil {
		kwargs = map[string]interface{}{}
	}
	callArgs = append(callArgs, kwargs)

	err := callCancellable(ctx, func() error {
		return p.object.Call("execute_kw", callArgs, reply)
	})
	if err != nil {
		return parseRPCFault(err)
	}
	return nil
}
