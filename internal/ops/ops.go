// Package ops is the catalog of GraphQL operations the connector knows how
// to run against an Unraid server. Each entry pairs a stable operation name
// with its document, kind, and timeout tier; callers supply variables at
// execution time.
package ops

import (
	"fmt"
	"sort"

	"github.com/gaspardpetit/unraidlink/internal/client"
	"github.com/gaspardpetit/unraidlink/internal/subs"
)

// Op is one catalog entry.
type Op struct {
	Name  string
	Kind  client.Kind
	Tier  client.Tier
	Query string
}

// Request binds variables to the operation, producing an executable request.
func (o Op) Request(vars map[string]any) client.Request {
	return client.Request{
		Name:      o.Name,
		Kind:      o.Kind,
		Query:     o.Query,
		Variables: vars,
		Tier:      o.Tier,
	}
}

// Lookup returns the catalog entry for name.
func Lookup(name string) (Op, error) {
	op, ok := catalog[name]
	if !ok {
		return Op{}, fmt.Errorf("unknown operation %q", name)
	}
	return op, nil
}

// Names lists every catalog operation, sorted.
func Names() []string {
	out := make([]string, 0, len(catalog))
	for n := range catalog {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// LogFileTopic builds the subscription topic that tails one server log file.
func LogFileTopic(path string) subs.Topic {
	return subs.Topic{
		Name: "logFile",
		Query: `subscription LogFileSubscription($path: String!) {
  logFile(path: $path) { path content totalLines }
}`,
		Variables: map[string]any{"path": path},
	}
}

// Array and disk enumeration walks every device and can trigger spin-ups,
// so those operations run on the extended tier. Lifecycle mutation names
// line up with the idempotent no-op rule table.
var catalog = map[string]Op{
	"systemInfo": {
		Name: "systemInfo",
		Kind: client.KindQuery,
		Tier: client.TierDefault,
		Query: `query GetSystemInfo {
  info {
    os { platform distro release kernel arch hostname uptime }
    cpu { manufacturer brand threads cores processors }
    baseboard { manufacturer model version serial }
    system { manufacturer model version uuid }
    versions { core { unraid api kernel } }
    machineId
    time
  }
}`,
	},
	"systemMetrics": {
		Name: "systemMetrics",
		Kind: client.KindQuery,
		Tier: client.TierDefault,
		Query: `query GetSystemMetrics {
  metrics {
    cpu { percentTotal cpus { percentTotal percentUser percentSystem percentIdle } }
    memory { total used free available percentTotal swapTotal swapUsed swapFree }
  }
}`,
	},
	"arrayStatus": {
		Name: "arrayStatus",
		Kind: client.KindQuery,
		Tier: client.TierExtended,
		Query: `query GetArrayStatus {
  array {
    id
    state
    capacity { kilobytes { free used total } disks { free used total } }
    parityCheckStatus { date duration speed status errors progress correcting paused running }
    parities { id idx name device size status temp numErrors fsType isSpinning }
    disks { id idx name device size status rotational temp numReads numWrites numErrors fsSize fsFree fsUsed fsType isSpinning }
    caches { id idx name device size status temp numErrors fsType isSpinning }
  }
}`,
	},
	"startArray": {
		Name: "startArray",
		Kind: client.KindMutation,
		Tier: client.TierExtended,
		Query: `mutation SetArrayState($input: ArrayStateInput!) {
  array { setState(input: $input) { id state } }
}`,
	},
	"stopArray": {
		Name: "stopArray",
		Kind: client.KindMutation,
		Tier: client.TierExtended,
		Query: `mutation SetArrayState($input: ArrayStateInput!) {
  array { setState(input: $input) { id state } }
}`,
	},
	"mountDisk": {
		Name: "mountDisk",
		Kind: client.KindMutation,
		Tier: client.TierExtended,
		Query: `mutation MountArrayDisk($id: PrefixedID!) {
  array { mountArrayDisk(id: $id) { id name device status fsType } }
}`,
	},
	"unmountDisk": {
		Name: "unmountDisk",
		Kind: client.KindMutation,
		Tier: client.TierExtended,
		Query: `mutation UnmountArrayDisk($id: PrefixedID!) {
  array { unmountArrayDisk(id: $id) { id name device status fsType } }
}`,
	},
	"listContainers": {
		Name: "listContainers",
		Kind: client.KindQuery,
		Tier: client.TierDefault,
		Query: `query ListDockerContainers {
  docker { containers(skipCache: false) { id names image state status autoStart } }
}`,
	},
	"startContainer": {
		Name: "startContainer",
		Kind: client.KindMutation,
		Tier: client.TierDefault,
		Query: `mutation StartDockerContainer($id: PrefixedID!) {
  docker { start(id: $id) { id names state status } }
}`,
	},
	"stopContainer": {
		Name: "stopContainer",
		Kind: client.KindMutation,
		Tier: client.TierDefault,
		Query: `mutation StopDockerContainer($id: PrefixedID!) {
  docker { stop(id: $id) { id names state status } }
}`,
	},
	"listVMs": {
		Name: "listVMs",
		Kind: client.KindQuery,
		Tier: client.TierDefault,
		Query: `query ListVMs {
  vms { id domains { id name state } }
}`,
	},
	"startVM": {
		Name: "startVM",
		Kind: client.KindMutation,
		Tier: client.TierDefault,
		Query: `mutation StartVM($id: PrefixedID!) {
  vm { start(id: $id) }
}`,
	},
	"stopVM": {
		Name: "stopVM",
		Kind: client.KindMutation,
		Tier: client.TierDefault,
		Query: `mutation StopVM($id: PrefixedID!) {
  vm { stop(id: $id) }
}`,
	},
	"rebootVM": {
		Name: "rebootVM",
		Kind: client.KindMutation,
		Tier: client.TierDefault,
		Query: `mutation RebootVM($id: PrefixedID!) {
  vm { reboot(id: $id) }
}`,
	},
	"parityStatus": {
		Name: "parityStatus",
		Kind: client.KindQuery,
		Tier: client.TierDefault,
		Query: `query GetParityStatus {
  array { parityCheckStatus { date duration speed status errors progress correcting paused running } }
}`,
	},
	"parityHistory": {
		Name: "parityHistory",
		Kind: client.KindQuery,
		Tier: client.TierDefault,
		Query: `query GetParityHistory {
  parityHistory { date duration speed status errors }
}`,
	},
	"startParityCheck": {
		Name: "startParityCheck",
		Kind: client.KindMutation,
		Tier: client.TierExtended,
		Query: `mutation StartParityCheck($correct: Boolean!) {
  parityCheck { start(correct: $correct) }
}`,
	},
	"pauseParityCheck": {
		Name: "pauseParityCheck",
		Kind: client.KindMutation,
		Tier: client.TierDefault,
		Query: `mutation PauseParityCheck {
  parityCheck { pause }
}`,
	},
	"resumeParityCheck": {
		Name: "resumeParityCheck",
		Kind: client.KindMutation,
		Tier: client.TierDefault,
		Query: `mutation ResumeParityCheck {
  parityCheck { resume }
}`,
	},
	"cancelParityCheck": {
		Name: "cancelParityCheck",
		Kind: client.KindMutation,
		Tier: client.TierDefault,
		Query: `mutation CancelParityCheck {
  parityCheck { cancel }
}`,
	},
	"notificationsOverview": {
		Name: "notificationsOverview",
		Kind: client.KindQuery,
		Tier: client.TierDefault,
		Query: `query NotificationsOverview {
  notifications {
    overview {
      unread { info warning alert total }
      archive { info warning alert total }
    }
  }
}`,
	},
	"listLogFiles": {
		Name: "listLogFiles",
		Kind: client.KindQuery,
		Tier: client.TierDefault,
		Query: `query ListLogFiles {
  logFiles { name path size modifiedAt }
}`,
	},
	"listUPSDevices": {
		Name: "listUPSDevices",
		Kind: client.KindQuery,
		Tier: client.TierDefault,
		Query: `query ListUpsDevices {
  upsDevices {
    id name model status
    battery { chargeLevel estimatedRuntime health }
    power { inputVoltage outputVoltage loadPercentage }
  }
}`,
	},
}
