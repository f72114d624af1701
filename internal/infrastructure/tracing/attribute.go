package tracing

// Attribute is a key/value pair attached to a span or event
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute
func String(key, value string) Attribute { return Attribute{Key: key, Value: value} }

// Int creates an integer attribute
func Int(key string, value int) Attribute { return Attribute{Key: key, Value: int64(value)} }

// Int64 creates an integer attribute
func Int64(key string, value int64) Attribute { return Attribute{Key: key, Value: value} }

// Bool creates a boolean attribute
func Bool(key string, value bool) Attribute { return Attribute{Key: key, Value: value} }

// Float64 creates a floating point attribute
func Float64(key string, value float64) Attribute { return Attribute{Key: key, Value: value} }

// Semantic attribute keys shared by the instrumentations
const (
	HTTPMethodKey     = "http.method"
	HTTPURLKey        = "http.url"
	HTTPTargetKey     = "http.target"
	HTTPRouteKey      = "http.route"
	HTTPStatusCodeKey = "http.status_code"
	HTTPUserAgentKey  = "http.user_agent"
	RequestIDKey      = "request.id"

	ServiceNameKey           = "service.name"
	ServiceVersionKey        = "service.version"
	DeploymentEnvironmentKey = "deployment.environment"
)

// Resource describes the entity producing spans
type Resource struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Extra holds additional resource attributes
	Extra map[string]string
}

// Attributes flattens the resource into attributes
func (r Resource) Attributes() []Attribute {
	attrs := make([]Attribute, 0, 3+len(r.Extra))
	if r.ServiceName != "" {
		attrs = append(attrs, String(ServiceNameKey, r.ServiceName))
	}
	if r.ServiceVersion != "" {
		attrs = append(attrs, String(ServiceVersionKey, r.ServiceVersion))
	}
	if r.Environment != "" {
		attrs = append(attrs, String(DeploymentEnvironmentKey, r.Environment))
	}
	for k, v := range r.Extra {
		attrs = append(attrs, String(k, v))
	}
	return attrs
}
