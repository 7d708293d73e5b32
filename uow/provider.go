package uow

import "github.com/gaborage/go-bricks-orm/database/types"

// ProviderFunc adapts a function to types.ExecutorProvider.
type ProviderFunc = types.ExecutorProviderFunc

// Direct returns a provider that always hands out driver, for services that
// never take part in a unit of work.
func Direct(driver types.Executor) types.ExecutorProvider {
	return ProviderFunc(func() types.Executor { return driver })
}
