package async

import "errors"

// ErrPoolClosed is returned by Submit/Go once Shutdown has begun.
var ErrPoolClosed = errors.New("async: pool is shut down")
