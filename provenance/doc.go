// Package provenance defines the engine the bridge drives and ships an
// in-process implementation of it.
//
// The bridge only depends on the Engine and Signer interfaces. LocalEngine
// stores a manifest store in JPEG APP11 segments (or as a standalone sidecar
// file). Each manifest carries a claim encoded as deterministic CBOR, signed
// through the Signer with the caller's certificate chain. The claim binds the
// asset bytes, every assertion and every resource with keyed BLAKE3 hashes.
//
// Reading a store re-checks every binding and reports failures as
// validation statuses in the JSON report rather than as errors:
//
//	store, err := engine.Read("image/jpeg", data)
//	if err != nil {
//		return err // no store, or not a supported format
//	}
//	report, _ := store.JSON()
package provenance
