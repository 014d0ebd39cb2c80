package lockmgr

import (
	"github.com/Kain-Deterick/VK-Internship/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("lockmgr")

type lockMgrImpl struct {
	store store.IStore
}

func NewLockManager(store store.IStore) ILockManager {
	return &lockMgrImpl{
		store: store,
	}
}

func (lm *lockMgrImpl) AcquireLock(key string, ttl uint32) (bool, []byte, error) {
	ownerID, err := generateOwnerID()
	if err != nil {
		return false, nil, err
	}

	// Try to acquire the lock (set the value only if no live value exists - atomic in the store)
	written, err := lm.store.SetIfAbsent(key, ownerID, ttl)
	if err != nil {
		log.Errorf("acquiring lock %q: %v", key, err)
		return false, nil, err
	}

	if !written {
		// held by someone else
		return false, nil, nil
	}

	log.Debugf("lock %q acquired by %s (ttl %d s)", key, ownerID, ttl)
	return true, ownerID, nil
}

func (lm *lockMgrImpl) ReleaseLock(key string, ownerID []byte) (bool, error) {
	// Remove the lock only while it is held by us (atomic in the store)
	removed, err := lm.store.RemoveIf(key, ownerID)
	if err != nil {
		log.Errorf("releasing lock %q: %v", key, err)
		return false, err
	}
	if removed {
		log.Debugf("lock %q released by %s", key, ownerID)
		return true, nil
	}

	// Not removed: either nobody holds the lock (an expired lease reads as missing) or someone else does
	_, held, err := lm.store.Get(key)
	if err != nil {
		return false, err
	}
	return !held, nil
}
