// Package tracing holds the context stack that brackets every trace and the
// error taxonomy shared by the tracer and its strategies.
//
// Frames are passed explicitly: the wrapper hands its Stack to nested
// traces through the Tracer capability instead of a process-global.
package tracing
