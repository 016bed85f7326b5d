package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/netsim-lab/netsim/sim"
	"github.com/netsim-lab/netsim/sim/datacenter"
)

// Scenario is the YAML description of a datacenter and its workload.
// All top-level sections must be listed to satisfy KnownFields(true) strict parsing.
type Scenario struct {
	Switches   []SwitchSpec    `yaml:"switches"`
	Latencies  []LatencySpec   `yaml:"latencies"`
	Hosts      []HostSpec      `yaml:"hosts"`
	VMs        []VMSpec        `yaml:"vms"`
	Tasks      []TaskSpec      `yaml:"tasks"`
	Migrations []MigrationSpec `yaml:"migrations"`
}

type SwitchSpec struct {
	ID                    string  `yaml:"id"`
	DownlinkBandwidthMbps float64 `yaml:"downlink_bandwidth_mbps"`
}

// LatencySpec is a symmetric switch-to-switch latency in ticks (µs).
type LatencySpec struct {
	From  string `yaml:"from"`
	To    string `yaml:"to"`
	Ticks int64  `yaml:"ticks"`
}

type HostSpec struct {
	ID            string  `yaml:"id"`
	PEs           int     `yaml:"pes"`
	MIPS          float64 `yaml:"mips"`
	Switch        string  `yaml:"switch"`
	BandwidthMbps float64 `yaml:"bandwidth_mbps"` // overrides the switch downlink when > 0
}

// VMSpec places a VM on Host, or by Placement ("auto" or "random") when Host is empty.
type VMSpec struct {
	ID        string  `yaml:"id"`
	PEs       int     `yaml:"pes"`
	MIPS      float64 `yaml:"mips"`
	Host      string  `yaml:"host"`
	Placement string  `yaml:"placement"`
}

type TaskSpec struct {
	ID     string      `yaml:"id"`
	VM     string      `yaml:"vm"`
	Stages []StageSpec `yaml:"stages"`
}

// StageSpec is one stage. PeerVM defaults to the VM of PeerTask.
type StageSpec struct {
	Kind     string `yaml:"kind"`
	Length   int64  `yaml:"length"` // MI, execute only
	Size     int64  `yaml:"size"`   // bytes per packet, send only
	Packets  int    `yaml:"packets"`
	PeerTask string `yaml:"peer_task"`
	PeerVM   string `yaml:"peer_vm"`
	Memory   int64  `yaml:"memory"`
}

type MigrationSpec struct {
	VM string `yaml:"vm"`
	To string `yaml:"to"`
	At int64  `yaml:"at"` // tick
}

const (
	placementAuto   = "auto"
	placementRandom = "random"
)

// LoadScenario reads and strictly parses a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses YAML with strict field checking: typos must cause errors.
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	return &sc, nil
}

// Validate reports every problem in the scenario at once.
func (sc *Scenario) Validate() error {
	var errs error
	add := func(format string, args ...any) {
		errs = multierr.Append(errs, fmt.Errorf(format, args...))
	}

	switches := map[string]bool{}
	for _, sw := range sc.Switches {
		if sw.ID == "" || switches[sw.ID] {
			add("switch %q: missing or duplicate id", sw.ID)
		}
		switches[sw.ID] = true
	}
	for _, l := range sc.Latencies {
		if !switches[l.From] || !switches[l.To] {
			add("latency %s<->%s: unknown switch", l.From, l.To)
		}
		if l.Ticks < 0 {
			add("latency %s<->%s: ticks must be >= 0, got %d", l.From, l.To, l.Ticks)
		}
	}

	hosts := map[string]bool{}
	for _, h := range sc.Hosts {
		if h.ID == "" || hosts[h.ID] {
			add("host %q: missing or duplicate id", h.ID)
		}
		hosts[h.ID] = true
		if h.PEs < 1 || h.MIPS <= 0 {
			add("host %s: pes must be >= 1 and mips > 0", h.ID)
		}
		if !switches[h.Switch] {
			add("host %s: unknown switch %q", h.ID, h.Switch)
			continue
		}
		if bw := sc.hostBandwidth(h); bw <= 0 {
			errs = multierr.Append(errs, errors.Wrapf(datacenter.ErrBandwidthConfiguration, "host %s: %v Mbps", h.ID, bw))
		}
	}

	vms := map[string]bool{}
	for _, vm := range sc.VMs {
		if vm.ID == "" || vms[vm.ID] {
			add("vm %q: missing or duplicate id", vm.ID)
		}
		vms[vm.ID] = true
		if vm.PEs < 1 || vm.MIPS <= 0 {
			add("vm %s: pes must be >= 1 and mips > 0", vm.ID)
		}
		switch {
		case vm.Host != "" && vm.Placement != "":
			add("vm %s: set either host or placement", vm.ID)
		case vm.Host != "" && !hosts[vm.Host]:
			add("vm %s: unknown host %q", vm.ID, vm.Host)
		case vm.Host == "" && vm.Placement != placementAuto && vm.Placement != placementRandom:
			add("vm %s: placement must be %q or %q, got %q", vm.ID, placementAuto, placementRandom, vm.Placement)
		}
	}

	taskVM := map[string]string{}
	for _, t := range sc.Tasks {
		if t.ID == "" {
			add("task with empty id")
		} else if _, dup := taskVM[t.ID]; dup {
			add("task %s: duplicate id", t.ID)
		}
		taskVM[t.ID] = t.VM
		if !vms[t.VM] {
			add("task %s: unknown vm %q", t.ID, t.VM)
		}
	}
	for _, t := range sc.Tasks {
		for i, st := range t.Stages {
			if !sim.IsValidStageKind(st.Kind) {
				add("task %s stage %d: kind must be execute, send or receive, got %q", t.ID, i, st.Kind)
				continue
			}
			if st.Length < 0 || st.Size < 0 || st.Packets < 0 {
				add("task %s stage %d: length, size and packets must be >= 0", t.ID, i)
			}
			if sim.StageKind(st.Kind) == sim.StageExecute {
				continue
			}
			if _, ok := taskVM[st.PeerTask]; !ok {
				add("task %s stage %d: unknown peer task %q", t.ID, i, st.PeerTask)
			}
			if st.PeerVM != "" && !vms[st.PeerVM] {
				add("task %s stage %d: unknown peer vm %q", t.ID, i, st.PeerVM)
			}
		}
	}

	for _, m := range sc.Migrations {
		if !vms[m.VM] || !hosts[m.To] {
			add("migration of %q to %q: unknown vm or host", m.VM, m.To)
		}
		if m.At < 0 {
			add("migration of %s: tick must be >= 0, got %d", m.VM, m.At)
		}
	}
	return errs
}

func (sc *Scenario) hostBandwidth(h HostSpec) float64 {
	if h.BandwidthMbps != 0 {
		return h.BandwidthMbps
	}
	for _, sw := range sc.Switches {
		if sw.ID == h.Switch {
			return sw.DownlinkBandwidthMbps
		}
	}
	return 0
}

// Build validates the scenario and assembles it into a Datacenter on s.
func (sc *Scenario) Build(s *sim.Simulator, cfg datacenter.Config) (*datacenter.Datacenter, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	topo := datacenter.NewStaticTopology()
	for _, sw := range sc.Switches {
		topo.AddNode(sim.EntityID(sw.ID), sw.DownlinkBandwidthMbps)
	}
	for _, l := range sc.Latencies {
		if err := topo.SetLatency(sim.EntityID(l.From), sim.EntityID(l.To), l.Ticks); err != nil {
			return nil, err
		}
	}

	dc := datacenter.NewDatacenter(s, topo, cfg)
	for _, sw := range sc.Switches {
		if _, err := dc.AddSwitch(sim.EntityID(sw.ID)); err != nil {
			return nil, err
		}
	}
	for _, h := range sc.Hosts {
		if _, err := dc.AddHost(datacenter.HostID(h.ID), h.PEs, h.MIPS, sim.EntityID(h.Switch), h.BandwidthMbps); err != nil {
			return nil, err
		}
	}
	for _, spec := range sc.VMs {
		if err := placeVM(dc, spec); err != nil {
			return nil, err
		}
	}

	taskVM := make(map[string]string, len(sc.Tasks))
	for _, t := range sc.Tasks {
		taskVM[t.ID] = t.VM
	}
	for _, t := range sc.Tasks {
		task := sim.NewStagedTask(sim.TaskID(t.ID), sim.VMID(t.VM))
		for _, st := range t.Stages {
			task.AddStage(st.toStage(taskVM))
		}
		if err := dc.Submit(task); err != nil {
			return nil, err
		}
	}

	for _, m := range sc.Migrations {
		if err := dc.ScheduleMigration(sim.VMID(m.VM), datacenter.HostID(m.To), m.At); err != nil {
			return nil, err
		}
	}
	return dc, nil
}

func placeVM(dc *datacenter.Datacenter, spec VMSpec) error {
	vm := sim.NewVM(sim.VMID(spec.ID), spec.PEs, spec.MIPS)
	switch {
	case spec.Host != "":
		return dc.PlaceVM(vm, datacenter.HostID(spec.Host))
	case spec.Placement == placementRandom:
		_, err := dc.PlaceVMRandom(vm)
		return err
	default:
		_, err := dc.PlaceVMAuto(vm)
		return err
	}
}

func (st StageSpec) toStage(taskVM map[string]string) sim.Stage {
	peer := sim.Endpoint{Task: sim.TaskID(st.PeerTask), VM: sim.VMID(st.PeerVM)}
	if peer.VM == "" {
		peer.VM = sim.VMID(taskVM[st.PeerTask])
	}
	switch sim.StageKind(st.Kind) {
	case sim.StageSend:
		return sim.NewSendStage(peer, st.Size, st.Packets, st.Memory)
	case sim.StageReceive:
		return sim.NewReceiveStage(peer, st.Packets, st.Memory)
	default:
		return sim.NewExecuteStage(st.Length, st.Memory)
	}
}
