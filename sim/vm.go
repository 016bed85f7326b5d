package sim

import "fmt"

// VM is a tenant execution context. Its host is tracked by the datacenter so
// that a VM can migrate without the scheduler noticing.
type VM struct {
	ID        VMID
	PEs       int
	MIPS      float64 // per PE
	Scheduler *TaskScheduler
}

// NewVM creates a VM with a fresh space-shared scheduler.
// Panics if pes < 1 or mips <= 0.
func NewVM(id VMID, pes int, mips float64) *VM {
	if mips <= 0 {
		panic(fmt.Sprintf("NewVM: VM %s needs positive MIPS, got %v", id, mips))
	}
	return &VM{ID: id, PEs: pes, MIPS: mips, Scheduler: NewTaskScheduler(id, pes)}
}

// RequestedMIPS is the compute the VM asks of its host: every PE at full speed.
func (vm *VM) RequestedMIPS() float64 {
	return float64(vm.PEs) * vm.MIPS
}

func (vm *VM) String() string {
	return fmt.Sprintf("VM: (ID: %s, PEs: %d, MIPS: %.0f)", vm.ID, vm.PEs, vm.MIPS)
}
