package woodchuck

import "context"

const maxDesirability = 5

// DownloadDesirability reports how much a download of one of versions
// would be wanted now, and which version to fetch. The version with the
// highest utility wins; ties go to the smaller download, then the earlier
// index.
func (s *Service) DownloadDesirability(_ context.Context, _ uint32, versions []DesirabilityVersion) (uint32, uint32, error) {
	return chooseVersion(versions)
}

func chooseVersion(versions []DesirabilityVersion) (uint32, uint32, error) {
	if len(versions) == 0 {
		return 0, 0, Errorf(KindInvalidArgs, "No versions supplied")
	}
	best := 0
	for i, v := range versions[1:] {
		b := versions[best]
		if v.Utility > b.Utility || (v.Utility == b.Utility && v.ExpectedSize < b.ExpectedSize) {
			best = i + 1
		}
	}
	return min(versions[best].Utility, maxDesirability), uint32(best), nil
}
