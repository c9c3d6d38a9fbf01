/*
Package domain contains the core data model of the liquid-handling pipeline.

It is kept free of I/O and of any hardware or persistence concern so that every
other package (codec, tracker, dispatcher, engine, adapters) can share it.

# Key Entities

  - Point / Location: deck coordinates, optionally tagged with the well or labware they belong to.
  - Labware / Well: loaded labware and the wells it exclusively owns, built from a LabwareDefinition.
  - CommandRecord: one entry of the run log, published once per physical action.
  - RunRecord: the archived result of one protocol execution.

The error taxonomy lives in errors.go; callers match it with errors.Is and errors.As.
*/
package domain
