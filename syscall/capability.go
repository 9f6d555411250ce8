package syscall

import (
	"github.com/veridian-os/kernel/capability"
	"github.com/veridian-os/kernel/kernelerr"
)

// CapCreate mints a new capability over object and installs it at
// index in pid's capability space, implementing spec.md §6's
// cap_create.
func (k *Kernel) CapCreate(pid uint64, index capability.CapIndex, object capability.ObjectRef, rights capability.Rights) (capability.Token, error) {
	space, err := k.spaceFor(pid)
	if err != nil {
		return 0, err
	}
	token, err := k.Caps.CreateCapability(object)
	if err != nil {
		return 0, err
	}
	space.Insert(index, token, rights, object)
	return token, nil
}

// CapDelegate copies the capability at srcIndex in srcPID's space into
// dstIndex in dstPID's space, restricted to the intersection of the
// delegator's current rights and the requested rights — a delegation
// can never grant more than the delegator itself holds, implementing
// spec.md §4.3.3's atomic, all-or-nothing delegation.
func (k *Kernel) CapDelegate(srcPID uint64, srcIndex capability.CapIndex, dstPID uint64, dstIndex capability.CapIndex, requested capability.Rights) error {
	srcSpace, err := k.spaceFor(srcPID)
	if err != nil {
		return err
	}
	dstSpace, err := k.spaceFor(dstPID)
	if err != nil {
		return err
	}

	token, held, ok := srcSpace.Lookup(srcIndex)
	if !ok {
		return kernelerr.InvalidCapability(uint64(srcIndex), kernelerr.CapNotFound)
	}
	if err := k.Caps.CheckCapability(token); err != nil {
		return err
	}
	if !held.Contains(requested) {
		return kernelerr.InsufficientRights(uint16(requested), uint16(held))
	}
	if !held.Contains(capability.Grant) {
		return kernelerr.InsufficientRights(uint16(capability.Grant), uint16(held))
	}

	entry, ok := k.Caps.Lookup(token)
	if !ok {
		return kernelerr.InvalidCapability(token.ID(), kernelerr.CapNotFound)
	}

	dstSpace.Insert(dstIndex, token, held.Intersect(requested), entry.Object)
	return nil
}

// CapRevoke revokes the capability at index in pid's space. When
// cascade is true it also revokes every sibling in that space that
// names the same object with strictly weaker rights, per
// [capability.Manager.RevokeCascading].
func (k *Kernel) CapRevoke(pid uint64, index capability.CapIndex, cascade bool) (int, error) {
	space, err := k.spaceFor(pid)
	if err != nil {
		return 0, err
	}
	token, _, ok := space.Lookup(index)
	if !ok {
		return 0, kernelerr.InvalidCapability(uint64(index), kernelerr.CapNotFound)
	}

	var count int
	if cascade {
		count, err = k.Caps.RevokeCascading(token, space)
	} else {
		err = k.Caps.Revoke(token)
		count = 1
	}
	if err != nil {
		return 0, err
	}
	_ = space.Remove(index)
	return count, nil
}

// CapCheck reports whether pid's capability at index is live and
// grants every bit in required.
func (k *Kernel) CapCheck(pid uint64, index capability.CapIndex, required capability.Rights) error {
	space, err := k.spaceFor(pid)
	if err != nil {
		return err
	}
	token, _, ok := space.Lookup(index)
	if !ok {
		return kernelerr.InvalidCapability(uint64(index), kernelerr.CapNotFound)
	}
	if err := k.Caps.CheckCapability(token); err != nil {
		return err
	}
	return space.CheckRights(index, required)
}

// lookupChecked resolves index in pid's space to a live token+object
// holding at least required rights, the common prelude shared by every
// IPC syscall's capability validation (§4.4.6).
func (k *Kernel) lookupChecked(pid uint64, index capability.CapIndex, required capability.Rights) (capability.Token, capability.ObjectRef, error) {
	space, err := k.spaceFor(pid)
	if err != nil {
		return 0, capability.ObjectRef{}, err
	}
	token, rights, ok := space.Lookup(index)
	if !ok {
		return 0, capability.ObjectRef{}, kernelerr.InvalidCapability(uint64(index), kernelerr.CapNotFound)
	}
	if err := k.Caps.CheckCapability(token); err != nil {
		return 0, capability.ObjectRef{}, err
	}
	if !rights.Contains(required) {
		return 0, capability.ObjectRef{}, kernelerr.InsufficientRights(uint16(required), uint16(rights))
	}
	entry, ok := k.Caps.Lookup(token)
	if !ok {
		return 0, capability.ObjectRef{}, kernelerr.InvalidCapability(token.ID(), kernelerr.CapNotFound)
	}
	return token, entry.Object, nil
}
