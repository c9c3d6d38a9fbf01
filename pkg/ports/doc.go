/*
Package ports defines the driven ports (interfaces) of the liquid-handling pipeline.

These interfaces decouple the dispatcher and the execution engine from concrete
hardware, labware sources, and run archives.

# Key Interfaces

  - Hardware: the physical primitives, implemented by a simulator and a live serial driver.
  - LabwareLoader: resolves labware definitions by load name (built-ins, custom directories).
  - RunStore: archives finished runs.
  - DistributedLocker: serialises access to a shared robot across processes.
*/
package ports
