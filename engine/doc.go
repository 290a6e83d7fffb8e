// Package engine runs edge guests on wazero.
//
// An Engine owns one wazero runtime and its compilation cache. Host modules
// are registered on the engine once, and a compiled Module is instantiated
// once per invocation:
//
//	eng, _ := engine.New(ctx, &engine.Config{MemoryLimitPages: 1024})
//	_ = eng.RegisterHostModule(ctx, hostModule)
//	mod, _ := eng.LoadModule(ctx, guestWasm)
//	err := mod.Instantiate(ctx, engine.InstanceConfig{
//		Stdin:  strings.NewReader(script),
//		Stdout: &out,
//		Args:   []string{"edge", requestJSON},
//	})
//
// # Guest surface
//
// LoadModule rejects modules that do not export the full surface listed in
// RequiredExports. Instantiate runs _start to completion; the instance is
// closed afterwards and never reused.
//
// Host functions receive the calling instance as an edgeruntime.Guest, so
// they can allocate in guest memory and drive the length stack while the
// guest is blocked in the import.
//
// # Errors
//
// Instantiate maps guest failures onto the errors package:
//
//	exit code != 0          KindGuestExit, with the tail of stderr
//	host function panic     KindProtocol
//	context done            KindInstantiation wrapping ctx.Err()
package engine
