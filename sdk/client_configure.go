package sdk

import (
	"context"
	"encoding/binary"
	"time"

	"circles_go/internal/protocol/llrp"
	"circles_go/internal/tags"
)

// Zebra vendor extension carrying the per-antenna dwell time.
const (
	zebraVendorID            uint32 = 161
	zebraMotoAntennaConfig   uint32 = 703
	zebraMotoAntennaStopCond uint32 = 704
	zebraStopTriggerDwell    byte   = 0
)

// configure resets the reader, replaces every ROSpec with ours and enables
// it. The first failing step aborts the rest.
func (r *LLRPReader) configure(ctx context.Context) error {
	steps := []struct {
		name string
		run  func() error
	}{
		{"set reader config", func() error {
			_, err := exchange[*llrp.SetReaderConfigResponse](ctx, r, &llrp.SetReaderConfig{
				ResetToFactoryDefault: true,
				Keepalive: &llrp.KeepaliveSpec{
					Trigger:  llrp.KeepalivePeriodic,
					PeriodMS: uint32(r.opts.KeepalivePeriod() / time.Millisecond),
				},
			})
			return err
		}},
		{"delete rospecs", func() error {
			// ROSpec id 0 addresses every plan on the reader.
			_, err := exchange[*llrp.DeleteROSpecResponse](ctx, r, &llrp.DeleteROSpec{ROSpecID: 0})
			return err
		}},
		{"add rospec", func() error {
			_, err := exchange[*llrp.AddROSpecResponse](ctx, r, &llrp.AddROSpec{ROSpec: inventoryPlan(r.opts)})
			return err
		}},
		{"enable rospec", func() error {
			_, err := exchange[*llrp.EnableROSpecResponse](ctx, r, &llrp.EnableROSpec{ROSpecID: ROSpecID})
			return err
		}},
	}
	for _, step := range steps {
		if err := step.run(); err != nil {
			r.log.Error().Err(err).Str("step", step.name).Msg("configuration failed")
			return err
		}
		r.log.Debug().Str("step", step.name).Msg("configuration step done")
	}
	return nil
}

// inventoryPlan is the fixed ROSpec. The reader rejects any initial state
// other than Disabled; null triggers leave start and stop to explicit
// requests; N=1 reports every tag as soon as it is seen.
func inventoryPlan(opts Options) llrp.ROSpec {
	antennas := make([]uint16, 0, tags.MaxAntenna)
	for a := tags.MinAntenna; a <= tags.MaxAntenna; a++ {
		antennas = append(antennas, a)
	}

	inv := llrp.InventoryParameterSpec{
		ID:       1,
		Protocol: llrp.AirProtocolEPCGlobalClass1Gen2,
	}
	if opts.ZebraDwell > 0 {
		inv.Antennas = []llrp.AntennaConfiguration{{
			AntennaID: 0,
			C1G2: &llrp.C1G2InventoryCommand{
				Custom: []llrp.Custom{zebraDwellParam(opts.ZebraDwell)},
			},
		}}
	}

	return llrp.ROSpec{
		ID:           ROSpecID,
		Priority:     0,
		CurrentState: llrp.ROSpecDisabled,
		Boundary: llrp.ROBoundarySpec{
			StartTrigger: llrp.StartTriggerNull,
			StopTrigger:  llrp.StopTriggerNull,
		},
		AISpecs: []llrp.AISpec{{
			AntennaIDs:  antennas,
			StopTrigger: llrp.AIStopTriggerNull,
			Inventory:   []llrp.InventoryParameterSpec{inv},
		}},
		Report: &llrp.ROReportSpec{
			Trigger: llrp.ReportTriggerUponNTagsOrEndOfAISpec,
			N:       1,
			Content: llrp.TagReportContentSelector{
				EnableAntennaID:          true,
				EnablePeakRSSI:           true,
				EnableFirstSeenTimestamp: true,
				EnableLastSeenTimestamp:  true,
				EnableTagSeenCount:       true,
			},
		},
	}
}

// zebraDwellParam wraps MotoAntennaStopCondition (trigger byte + u16 ms)
// inside MotoAntennaConfig. The reader only honours it inside a
// C1G2InventoryCommand.
func zebraDwellParam(dwell time.Duration) llrp.Custom {
	ms := dwell / time.Millisecond
	if ms > 0xFFFF {
		ms = 0xFFFF
	}
	cond := []byte{zebraStopTriggerDwell, 0, 0}
	binary.BigEndian.PutUint16(cond[1:], uint16(ms))
	inner, _ := llrp.Custom{
		VendorID: zebraVendorID,
		Subtype:  zebraMotoAntennaStopCond,
		Data:     cond,
	}.MarshalBinary()
	return llrp.Custom{
		VendorID: zebraVendorID,
		Subtype:  zebraMotoAntennaConfig,
		Data:     inner,
	}
}
