package crawler

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// SiteCreator builds a site using the named extraction schema; empty selects the site default
type SiteCreator func(schema string) (Site, error)

var (
	siteRegistry     = make(map[string]SiteCreator)
	siteRegistryLock sync.RWMutex
)

// RegisterSite registers a site creator under name
func RegisterSite(name string, creator SiteCreator) {
	siteRegistryLock.Lock()
	defer siteRegistryLock.Unlock()
	siteRegistry[name] = creator
}

// GetSite builds the site registered under name
func GetSite(name, schema string) (Site, error) {
	siteRegistryLock.RLock()
	creator, ok := siteRegistry[name]
	siteRegistryLock.RUnlock()
	if !ok {
		return Site{}, fmt.Errorf("%w: %s", ErrUnknownSite, name)
	}

	site, err := creator(schema)
	if err != nil {
		return Site{}, fmt.Errorf("failed to create site %s: %w", name, err)
	}
	if err := site.Validate(); err != nil {
		return Site{}, err
	}
	return site, nil
}

// GetSiteRegistry returns a copy of the site registry
func GetSiteRegistry() map[string]SiteCreator {
	siteRegistryLock.RLock()
	defer siteRegistryLock.RUnlock()

	// Create a copy to avoid race conditions
	registryCopy := make(map[string]SiteCreator, len(siteRegistry))
	maps.Copy(registryCopy, siteRegistry)

	return registryCopy
}

// SiteNames returns the registered site names in sorted order
func SiteNames() []string {
	return slices.Sorted(maps.Keys(GetSiteRegistry()))
}
