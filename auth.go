package channels

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Auth is the value produced by any authorization method.
type Auth struct {
	// Auth is the signature string, always present.
	Auth string
	// ChannelData is set for presence channels only.
	ChannelData string
	// SharedSecret is set for encrypted channels only; it becomes the
	// channel's decryption key.
	SharedSecret string
}

// AuthRequestBuilder builds the HTTP request used to authorize a channel
// subscription, for callers who need custom headers or endpoints.
type AuthRequestBuilder interface {
	RequestFor(socketID, channelName string) (*http.Request, error)
}

// Authorizer fetches an auth value through arbitrary caller-supplied means.
// completion must be called exactly once.
type Authorizer interface {
	FetchAuthValue(socketID, channelName string, completion func(*Auth, error))
}

type authMethodKind int

const (
	authMethodNone authMethodKind = iota
	authMethodEndpoint
	authMethodRequestBuilder
	authMethodAuthorizer
	authMethodInline
)

// AuthMethod selects how private and presence channel subscriptions are
// authorized. The zero value is "no method": subscriptions to channels that
// require auth will fail with an AuthError of kind AuthErrorNoMethod.
type AuthMethod struct {
	kind       authMethodKind
	endpoint   string
	builder    AuthRequestBuilder
	authorizer Authorizer
	secret     string
}

// AuthEndpoint authorizes by POSTing socket_id and channel_name to the given
// URL.
func AuthEndpoint(endpoint string) AuthMethod {
	return AuthMethod{kind: authMethodEndpoint, endpoint: endpoint}
}

// AuthWithRequestBuilder authorizes with an HTTP request built by b.
func AuthWithRequestBuilder(b AuthRequestBuilder) AuthMethod {
	return AuthMethod{kind: authMethodRequestBuilder, builder: b}
}

// AuthWithAuthorizer authorizes through the given Authorizer.
func AuthWithAuthorizer(a Authorizer) AuthMethod {
	return AuthMethod{kind: authMethodAuthorizer, authorizer: a}
}

// InlineSecret signs subscriptions locally with the app secret. Only
// appropriate where embedding the secret is acceptable, e.g. server-side
// clients.
func InlineSecret(secret string) AuthMethod {
	return AuthMethod{kind: authMethodInline, secret: secret}
}

// AuthErrorKind distinguishes the ways authorization can fail.
type AuthErrorKind int

const (
	// AuthErrorNotConnected: no socket id yet, so nothing to sign.
	AuthErrorNotConnected AuthErrorKind = iota
	// AuthErrorNoMethod: the channel requires auth but no method is
	// configured.
	AuthErrorNoMethod
	// AuthErrorCouldNotBuildRequest: the AuthRequestBuilder failed.
	AuthErrorCouldNotBuildRequest
	// AuthErrorInvalidAuthResponse: non-2xx status, unparseable body, or a
	// body missing the auth field.
	AuthErrorInvalidAuthResponse
	// AuthErrorRequestFailure: the HTTP request itself failed.
	AuthErrorRequestFailure
)

// AuthError carries the context of a failed authorization attempt.
type AuthError struct {
	Kind    AuthErrorKind
	Message string
	// Response is the HTTP response, when one was received.
	Response *http.Response
	// Body is the raw response body, when one was read.
	Body string
	// Err is the underlying error, when there was one.
	Err error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// buildAuthRequest creates the POST request for the auth endpoint contract:
// body socket_id={id}&channel_name={percent-encoded name}.
func buildAuthRequest(endpoint, socketID, channelName string) (*http.Request, error) {
	body := "socket_id=" + socketID + "&channel_name=" + encodeChannelName(channelName)
	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// encodeChannelName percent-encodes everything outside the conservative
// unreserved set, with spaces as %20 rather than "+".
func encodeChannelName(name string) string {
	return strings.ReplaceAll(url.QueryEscape(name), "+", "%20")
}

// parseAuthResponse validates an auth endpoint response. Success requires
// HTTP 200 or 201 and a JSON body with an "auth" string field.
func parseAuthResponse(channelName string, resp *http.Response) (*Auth, *AuthError) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{
			Kind:     AuthErrorInvalidAuthResponse,
			Message:  fmt.Sprintf("error authorizing channel [%s]: could not read response", channelName),
			Response: resp,
			Err:      err,
		}
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &AuthError{
			Kind:     AuthErrorInvalidAuthResponse,
			Message:  fmt.Sprintf("error authorizing channel [%s]: status %d", channelName, resp.StatusCode),
			Response: resp,
			Body:     string(body),
		}
	}

	var parsed struct {
		Auth         string `json:"auth"`
		ChannelData  string `json:"channel_data"`
		SharedSecret string `json:"shared_secret"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &AuthError{
			Kind:     AuthErrorInvalidAuthResponse,
			Message:  fmt.Sprintf("error authorizing channel [%s]: could not parse response", channelName),
			Response: resp,
			Body:     string(body),
			Err:      err,
		}
	}
	if parsed.Auth == "" {
		return nil, &AuthError{
			Kind:     AuthErrorInvalidAuthResponse,
			Message:  fmt.Sprintf("error authorizing channel [%s]: no auth field in response", channelName),
			Response: resp,
			Body:     string(body),
		}
	}

	return &Auth{
		Auth:         parsed.Auth,
		ChannelData:  parsed.ChannelData,
		SharedSecret: parsed.SharedSecret,
	}, nil
}
