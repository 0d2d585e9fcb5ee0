// Package admission coordinates task admission across services. A Manager
// keeps one bulkhead per logical service plus a table of global semaphores
// for shared resource classes (CPU, memory, network, disk, AI requests,
// containers). Execute claims the declared resource classes, then runs the
// task under the service's bulkhead, so both per-service concurrency and
// machine-wide pressure stay bounded.
//
//	mgr := admission.NewManager(admission.Options{
//	    Defaults: resilience.BulkheadConfig{MaxConcurrent: 10, MaxQueueSize: 50},
//	    Services: map[string]admission.ServiceConfig{
//	        "transcode": {MaxConcurrent: admission.IntPtr(2)},
//	    },
//	})
//
//	err := mgr.Execute(ctx, "transcode", doWork,
//	    admission.WithSemaphores(admission.ResourceCPU, admission.ResourceDiskIO))
//
// Enforcement is gated by the enableBulkhead feature flag; with the flag off
// tasks run directly and no counters move, which makes rollout and emergency
// bypass a flag flip rather than a deploy.
package admission
