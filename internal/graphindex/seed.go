package graphindex

import (
	"fmt"

	"github.com/gofr-iq/gofr-iq/internal/domain"
)

// taxonomyRegion, taxonomySector, taxonomyEventType, and taxonomyFactor
// are the core reference-data rows spec.md §6 "Graph schema seeding"
// describes ("regions, sectors, event types, macro factors) merged by
// stable codes"), ported from original_source/scripts/bootstrap_graph.py
// and the REGIONS/SECTORS/EVENT_TYPES tables it imports from
// simulation/universe/builder.py — the canonical lists the original
// system bootstraps Neo4j with.
type taxonomyRegion struct{ Code, Name, Description string }
type taxonomySector struct{ Code, Name, Description string }
type taxonomyEventType struct {
	Code, Name, Category string
	BaseImpact           float64
}
type taxonomyFactor struct{ ID, Name, Category, Description string }

var seedRegions = []taxonomyRegion{
	{"NORTH_AMERICA", "North America", "US, Canada, Mexico"},
	{"EUROPE", "Europe", "European Union and UK"},
	{"ASIA_PACIFIC", "Asia Pacific", "China, Japan, India, SE Asia"},
	{"LATIN_AMERICA", "Latin America", "Central and South America"},
	{"MIDDLE_EAST", "Middle East", "Middle Eastern countries"},
	{"AFRICA", "Africa", "African continent"},
}

var seedSectors = []taxonomySector{
	{"TECHNOLOGY", "Technology", "Software, Hardware, IT Services"},
	{"HEALTHCARE", "Healthcare", "Pharma, Biotech, Medical Devices"},
	{"FINANCIAL", "Financial Services", "Banks, Fintech, Insurance"},
	{"CONSUMER", "Consumer", "Retail, Luxury, Consumer Goods"},
	{"INDUSTRIALS", "Industrials", "Manufacturing, Defense, Construction"},
	{"ENERGY", "Energy", "Oil, Gas, Renewables"},
	{"AUTO", "Automotive", "Auto manufacturers, EV, Suppliers"},
	{"REAL_ESTATE", "Real Estate", "REITs, Property Development"},
	{"CONGLOMERATE", "Conglomerate", "Diversified holdings"},
}

var seedEventTypes = []taxonomyEventType{
	{"EARNINGS", "Earnings Report", "Financial", 0.7},
	{"M&A", "Merger & Acquisition", "Corporate", 0.9},
	{"REGULATORY", "Regulatory Action", "Regulatory", 0.8},
	{"PRODUCT_LAUNCH", "Product Launch", "Innovation", 0.6},
	{"EXEC_CHANGE", "Executive Change", "Corporate", 0.5},
	{"LITIGATION", "Legal Action", "Legal", 0.7},
	{"FDA_APPROVAL", "FDA Approval/Denial", "Regulatory", 0.95},
	{"MACRO_ECON", "Macroeconomic Event", "Economic", 0.8},
	{"SUPPLY_CHAIN", "Supply Chain Issue", "Operations", 0.6},
	{"CYBER_SECURITY", "Cyber Security Incident", "Technology", 0.75},
}

// seedFactors carries the macro factors bootstrap_graph.py defines
// inline rather than importing from the universe builder ("core
// taxonomy, not simulation-specific").
var seedFactors = []taxonomyFactor{
	{"INTEREST_RATES", "Interest Rate Changes", "Monetary Policy", "Central bank interest rate policy changes"},
	{"COMMODITY_PRICES", "Commodity Price Volatility", "Commodities", "Oil, metals, agricultural commodity price movements"},
	{"REGULATION", "Regulatory Environment", "Policy", "Government regulatory changes and enforcement"},
	{"CONSUMER_SPENDING", "Consumer Spending", "Economic", "Household consumption and retail sales trends"},
	{"CHINA_ECONOMY", "China Economic Growth", "Geographic", "Chinese GDP growth and economic policy"},
}

// SeedTaxonomy idempotently merges the core reference taxonomy (regions,
// sectors, event types, macro factors) by stable code — spec.md §6's
// "Graph schema seeding is idempotent... plus a core taxonomy... merged
// by stable codes". UpsertNode's ON CONFLICT semantics (see migrate's
// schema) make every call here a no-op MERGE on repeat runs, matching
// bootstrap_graph.py's MERGE-based idempotency. Intended to run once at
// process startup before any ingest or query traffic.
func (idx *Index) SeedTaxonomy() error {
	for _, r := range seedRegions {
		guid := "region-" + r.Code
		if err := idx.UpsertNode(guid, LabelRegion, r.Code, map[string]any{
			"name": r.Name, "description": r.Description,
		}); err != nil {
			return fmt.Errorf("seed region %s: %w", r.Code, err)
		}
	}
	for _, s := range seedSectors {
		guid := "sector-" + s.Code
		if err := idx.UpsertNode(guid, LabelSector, s.Code, map[string]any{
			"name": s.Name, "description": s.Description,
		}); err != nil {
			return fmt.Errorf("seed sector %s: %w", s.Code, err)
		}
	}
	for _, et := range seedEventTypes {
		guid := "eventtype-" + et.Code
		tier := domain.ImpactTierForScore(et.BaseImpact * 100)
		if err := idx.UpsertNode(guid, LabelEventType, et.Code, map[string]any{
			"name": et.Name, "category": et.Category,
			"base_impact": et.BaseImpact, "default_tier": string(tier),
		}); err != nil {
			return fmt.Errorf("seed event type %s: %w", et.Code, err)
		}
	}
	for _, f := range seedFactors {
		guid := "factor-" + f.ID
		if err := idx.UpsertNode(guid, LabelFactor, f.ID, map[string]any{
			"name": f.Name, "category": f.Category, "description": f.Description,
		}); err != nil {
			return fmt.Errorf("seed factor %s: %w", f.ID, err)
		}
	}
	return nil
}
