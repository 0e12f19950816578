package torque

import "sync"

// requestPool and responsePool recycle *Request/*Response across requests
// via sync.Pool, keeping the hot path allocation-free.
var (
	requestPool = sync.Pool{New: func() any { return newRequest() }}
	responsePool = sync.Pool{New: func() any { return newResponse() }}
)

func acquireRequest() *Request {
	return requestPool.Get().(*Request)
}

func releaseRequest(r *Request) {
	requestPool.Put(r)
}

func acquireResponse() *Response {
	return responsePool.Get().(*Response)
}

func releaseResponse(r *Response) {
	responsePool.Put(r)
}
