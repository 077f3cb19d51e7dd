package fetcher

import "bytes"

func httpBody(data []byte) *bytes.Reader {
	return bytes.NewReader(data)
}
