//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

// Backend names the transformer implementation compiled into the binary.
func Backend() string {
	return "stdlib"
}

func newTransformer(opts Options) (Transformer, error) {
	return stdlibTransformer{jpegQuality: opts.JPEGQuality}, nil
}
