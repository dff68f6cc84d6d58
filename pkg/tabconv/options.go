package tabconv

import (
	"github.com/dyuri/tabconv/internal/text"
	"github.com/sirupsen/logrus"
)

// Option configures Open
type Option func(*options)

type options struct {
	codecs  text.CodecTable
	charset string
	logger  logrus.FieldLogger
}

func defaultOptions() options {
	return options{
		codecs: text.DefaultCodecs(),
		logger: logrus.StandardLogger(),
	}
}

// WithCodecs replaces the charset -> codec table used to decode strings
func WithCodecs(codecs CodecTable) Option {
	return func(o *options) {
		o.codecs = codecs
	}
}

// WithCharset ignores the !charset line of the header and decodes
// strings with the codec registered for token instead
func WithCharset(token string) Option {
	return func(o *options) {
		o.charset = token
	}
}

// WithLogger sets the logger for pipeline progress and degraded rows
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
