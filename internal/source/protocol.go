package source

// Headers of the remote synonym protocol.
const (
	HeaderIfModifiedSince = "If-Modified-Since"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderLastModified    = "Last-Modified"
	HeaderETag            = "ETag"
	HeaderOffset          = "Offset"
	HeaderIncremental     = "Incremental"
	HeaderLastAction      = "LAST_ACTION"
	HeaderIsReload        = "isReload"
	HeaderContentType     = "Content-Type"

	callbackPath = "/callback"
)
