// Package errors classifies failures into three handling classes.
//
//   - Transient: gateway, cache or broker transport failures. The owning loop
//     backs off and retries.
//   - Invalid: malformed descriptors or push messages. The item is dropped and
//     logged.
//   - Fatal: configuration errors and exhausted publisher restarts. The process
//     exits non-zero.
//
// All wrapping follows "component.method: action failed: %w" so log lines can
// be traced back to the call site:
//
//	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
//	    return errors.WrapTransient(err, "RedisStore", "Put", "set record")
//	}
//
// Classification survives errors.Is and errors.As chains, so callers can test
// both the class and a sentinel:
//
//	if errors.IsInvalid(err) {
//	    logger.Debug("dropping descriptor", "error", err)
//	}
package errors
