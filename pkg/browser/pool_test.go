package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/vouch/pkg/types"
)

func newTestPool(names ...string) *Pool {
	pool := NewPool(PoolOptions{})
	for _, name := range names {
		pool.insert(newTestInstance(name, "https://"+name+".test"))
	}
	return pool
}

func TestPool_GetAndActive(t *testing.T) {
	pool := newTestPool("main", "admin")

	t.Run("first inserted instance is active", func(t *testing.T) {
		active, err := pool.Active()
		require.NoError(t, err)
		assert.Equal(t, "main", active.Name)
	})

	t.Run("get by name", func(t *testing.T) {
		inst, err := pool.Get("admin")
		require.NoError(t, err)
		assert.Equal(t, "admin", inst.Name)
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := pool.Get("ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("empty pool has no active instance", func(t *testing.T) {
		_, err := newTestPool().Active()
		assert.ErrorIs(t, err, ErrNoActiveInstance)
	})
}

func TestPool_SetActive(t *testing.T) {
	pool := newTestPool("main", "admin")

	require.NoError(t, pool.SetActive("admin"))
	assert.Equal(t, "admin", pool.ActiveName())

	assert.ErrorIs(t, pool.SetActive("ghost"), ErrNotFound)
	assert.Equal(t, "admin", pool.ActiveName())
}

func TestPool_Despawn(t *testing.T) {
	t.Run("unknown name", func(t *testing.T) {
		pool := newTestPool("main")
		assert.ErrorIs(t, pool.Despawn("ghost"), ErrNotFound)
	})

	t.Run("despawning the active instance promotes a survivor", func(t *testing.T) {
		pool := newTestPool("main", "admin")
		require.NoError(t, pool.Despawn("main"))

		active, err := pool.Active()
		require.NoError(t, err)
		assert.Equal(t, "admin", active.Name)
	})

	t.Run("despawning the last instance clears active state", func(t *testing.T) {
		pool := newTestPool("main")
		require.NoError(t, pool.Despawn("main"))

		assert.Equal(t, "", pool.ActiveName())
		_, err := pool.Active()
		assert.ErrorIs(t, err, ErrNoActiveInstance)
	})

	t.Run("active always resolves after arbitrary despawns", func(t *testing.T) {
		pool := newTestPool("a", "b", "c", "d")
		for _, name := range []string{"b", "a", "d"} {
			require.NoError(t, pool.Despawn(name))
			if pool.ActiveName() != "" {
				_, err := pool.Get(pool.ActiveName())
				require.NoError(t, err, "active name %q must resolve", pool.ActiveName())
			}
		}
	})
}

func TestPool_Route(t *testing.T) {
	pool := NewPool(PoolOptions{})
	pool.insert(newTestInstance("main", "https://main.test"))
	pool.insert(NewInstance("admin",
		&fakePage{url: "https://admin.test/dashboard"},
		&fakePage{url: "https://admin.test/users"},
	))

	t.Run("defaults to the active instance", func(t *testing.T) {
		inst, err := pool.Route(types.Command{Mode: types.ModeExtract})
		require.NoError(t, err)
		assert.Equal(t, "main", inst.Name)
	})

	t.Run("explicit target overrides active", func(t *testing.T) {
		inst, err := pool.Route(types.Command{Mode: types.ModeExtract, TargetInstance: "admin"})
		require.NoError(t, err)
		assert.Equal(t, "admin", inst.Name)
		assert.Equal(t, "main", pool.ActiveName())
	})

	t.Run("tab index switch is a routing side effect", func(t *testing.T) {
		inst, err := pool.Route(types.Command{
			Mode:           types.ModeExtract,
			TargetInstance: "admin",
			TargetTab:      "1",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, inst.ActiveIndex())
	})

	t.Run("tab fragment switch", func(t *testing.T) {
		inst, err := pool.Route(types.Command{
			Mode:           types.ModeExtract,
			TargetInstance: "admin",
			TargetTab:      "dashboard",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, inst.ActiveIndex())
	})

	t.Run("bad tab target fails routing", func(t *testing.T) {
		_, err := pool.Route(types.Command{
			Mode:           types.ModeExtract,
			TargetInstance: "admin",
			TargetTab:      "9",
		})
		assert.ErrorIs(t, err, ErrTabOutOfRange)
	})

	t.Run("unknown instance fails routing", func(t *testing.T) {
		_, err := pool.Route(types.Command{Mode: types.ModeExtract, TargetInstance: "ghost"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestPool_List(t *testing.T) {
	pool := newTestPool("main", "admin")

	infos := pool.List()
	require.Len(t, infos, 2)

	byName := make(map[string]InstanceInfo, len(infos))
	for _, info := range infos {
		byName[info.Name] = info
	}
	assert.True(t, byName["main"].Active)
	assert.False(t, byName["admin"].Active)
	assert.Equal(t, 1, byName["main"].TabCount)
	assert.Equal(t, "https://main.test", byName["main"].ActiveURL)
}

func TestPool_SpawnRequiresInitialization(t *testing.T) {
	pool := NewPool(PoolOptions{})
	_, err := pool.Spawn("main", SpawnOptions{})
	assert.Error(t, err)
}

func TestPool_SpawnDuplicateName(t *testing.T) {
	pool := newTestPool("main")
	pool.initialized = true

	_, err := pool.Spawn("main", SpawnOptions{})
	assert.ErrorIs(t, err, ErrDuplicateName)
}

func TestPool_SpawnEnforcesInstanceLimit(t *testing.T) {
	pool := newTestPool("main", "admin")
	pool.initialized = true
	pool.opts.MaxInstances = 2

	_, err := pool.Spawn("third", SpawnOptions{})
	assert.ErrorIs(t, err, ErrPoolFull)
}

func TestPool_RouteForegroundsSwitchedTab(t *testing.T) {
	first := &fakePage{url: "https://main.test/home"}
	second := &fakePage{url: "https://main.test/settings"}
	pool := NewPool(PoolOptions{})
	pool.insert(NewInstance("main", first, second))

	instance, err := pool.Route(types.Command{Mode: types.ModeExtract, TargetInstance: "main", TargetTab: "settings"})
	require.NoError(t, err)
	assert.Equal(t, 1, instance.ActiveIndex())
	assert.True(t, second.foreground)
	assert.False(t, first.foreground)
}
