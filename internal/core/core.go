/*
Core implements the event-driven strategy executor.

# Module
  - dispatcher: one lane per instrument, plus a process lane for symbol-less events
  - engine: routes each event kind to the order book, signal engine, position tracker and risk controller
  - lifecycle: unwinds the run loop on operator signal or risk shutdown

# Source
 1. market data from ingest
 2. order reports from the venue (paper venue feeds them back in-process)
 3. journal replay from the replay tool

# Produce
  - order intents to the venue
  - an audit record for every event and intent

# Sharded
  - instrument
*/
package core
