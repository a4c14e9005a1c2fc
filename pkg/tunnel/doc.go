// Package tunnel makes a server on the local machine reachable by a remote
// browser farm.
//
// A Manager runs the provisioning sequence at most once per adapter:
//
//	NotNeeded -> NeedsBinary -> Launching -> WaitingReady -> Ready
//	                  |              |              |
//	                  +--------------+--------------+--> Failed
//
// NotNeeded covers targets that are not local and targets some running
// tunnel already serves. The binary is fetched lazily into the tools
// directory, launched as a detached process and then awaited through a
// Readiness strategy. A process that never becomes ready is left running;
// Close is the only thing that stops it.
package tunnel
