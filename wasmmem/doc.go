// Package wasmmem exposes WebAssembly linear memory owned by a wazero module
// as pod views, so host code can read and write guest structs in place.
//
// The views alias the guest's memory. Growing the memory may move it, which
// leaves every earlier view pointing at stale bytes: take views after the
// guest call that could grow memory returns, and drop them before the next.
package wasmmem
