package service

import (
	"context"
	"fmt"
	"sort"

	"ConsorcioSync/internal/etlerr"
	"ConsorcioSync/internal/model"
	"ConsorcioSync/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Arena 单次运行的引用数据快照：administradora、出价/bem类型、grupo及其当前bem/空缺数。
// 由pipeline持有并在步骤之间传递，运行结束即丢弃。
type Arena struct {
	Administrator *model.Administrator
	BidTypes      map[string]uint64
	BidValueTypes map[string]uint64
	AssetTypes    map[string]uint64
	Groups        map[string]*model.Group // canonical code -> group
	Assets        map[uint64]*model.Asset
	Vacancies     map[uint64]*model.GroupVacancies

	touched map[uint64]struct{}
}

func newArena(adm *model.Administrator) *Arena {
	return &Arena{
		Administrator: adm,
		BidTypes:      make(map[string]uint64),
		BidValueTypes: make(map[string]uint64),
		AssetTypes:    make(map[string]uint64),
		Groups:        make(map[string]*model.Group),
		Assets:        make(map[uint64]*model.Asset),
		Vacancies:     make(map[uint64]*model.GroupVacancies),
		touched:       make(map[uint64]struct{}),
	}
}

// BidTypeID 出价类型ID，未知类型返回 NotFound
func (a *Arena) BidTypeID(code string) (uint64, error) {
	id, ok := a.BidTypes[code]
	if !ok {
		return 0, etlerr.NotFound("出价类型", code)
	}
	return id, nil
}

// BidValueTypeID 出价取值类型ID
func (a *Arena) BidValueTypeID(code string) (uint64, error) {
	id, ok := a.BidValueTypes[code]
	if !ok {
		return 0, etlerr.NotFound("出价取值类型", code)
	}
	return id, nil
}

// AssetTypeID bem类型ID，未知类型返回 NotFound
func (a *Arena) AssetTypeID(code string) (uint64, error) {
	id, ok := a.AssetTypes[code]
	if !ok {
		return 0, etlerr.NotFound("bem类型", code)
	}
	return id, nil
}

// SortedGroups 按代码排序的grupo列表
func (a *Arena) SortedGroups() []*model.Group {
	out := make([]*model.Group, 0, len(a.Groups))
	for _, g := range a.Groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// TouchedGroupIDs 本次运行写入过的grupo（有序），用于完成事件
func (a *Arena) TouchedGroupIDs() []uint64 {
	ids := make([]uint64, 0, len(a.touched))
	for id := range a.touched {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// begin 开始一个批次的暂存视图；批次事务提交后调用 commit 合并，回滚时直接丢弃
func (a *Arena) begin() *arenaBatch {
	return &arenaBatch{
		arena:     a,
		groups:    make(map[string]*model.Group),
		assets:    make(map[uint64]*model.Asset),
		vacancies: make(map[uint64]*model.GroupVacancies),
		touched:   make(map[uint64]struct{}),
	}
}

type arenaBatch struct {
	arena     *Arena
	groups    map[string]*model.Group
	assets    map[uint64]*model.Asset
	vacancies map[uint64]*model.GroupVacancies
	touched   map[uint64]struct{}
}

func (b *arenaBatch) group(code string) *model.Group {
	if g, ok := b.groups[code]; ok {
		return g
	}
	return b.arena.Groups[code]
}

func (b *arenaBatch) asset(groupID uint64) *model.Asset {
	if v, ok := b.assets[groupID]; ok {
		return v
	}
	return b.arena.Assets[groupID]
}

func (b *arenaBatch) vacancy(groupID uint64) *model.GroupVacancies {
	if v, ok := b.vacancies[groupID]; ok {
		return v
	}
	return b.arena.Vacancies[groupID]
}

func (b *arenaBatch) commit() {
	for k, v := range b.groups {
		b.arena.Groups[k] = v
	}
	for k, v := range b.assets {
		b.arena.Assets[k] = v
	}
	for k, v := range b.vacancies {
		b.arena.Vacancies[k] = v
	}
	for k := range b.touched {
		b.arena.touched[k] = struct{}{}
	}
}

// LookupService 每次运行开始时加载一次引用数据
type LookupService struct {
	repo   repository.ReferenceRepository
	logger *logrus.Logger
}

func NewLookupService(db *gorm.DB, logger *logrus.Logger) *LookupService {
	return &LookupService{repo: repository.NewReferenceRepository(db), logger: logger}
}

// Load 加载administradora的引用数据；administradora不存在时返回 NotFound（不会自动创建）
func (s *LookupService) Load(ctx context.Context, admCode string) (*Arena, error) {
	adm, err := s.repo.GetAdministratorByCode(ctx, admCode)
	if err != nil {
		return nil, err
	}
	arena := newArena(adm)

	bidTypes, err := s.repo.ListBidTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range bidTypes {
		arena.BidTypes[t.Code] = t.ID
	}
	valueTypes, err := s.repo.ListBidValueTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range valueTypes {
		arena.BidValueTypes[t.Code] = t.ID
	}
	assetTypes, err := s.repo.ListAssetTypes(ctx)
	if err != nil {
		return nil, err
	}
	for _, t := range assetTypes {
		arena.AssetTypes[t.Code] = t.ID
	}

	groups, err := s.repo.ListGroups(ctx, adm.ID)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		if prev, dup := arena.Groups[g.Code]; dup {
			return nil, etlerr.Conflict(fmt.Errorf("grupo代码%s重复（id=%d, id=%d）", g.Code, prev.ID, g.ID))
		}
		arena.Groups[g.Code] = g
	}

	assets, err := s.repo.ListCurrentAssets(ctx, adm.ID)
	if err != nil {
		return nil, err
	}
	for _, a := range assets {
		arena.Assets[a.GroupID] = a
	}
	vacancies, err := s.repo.ListCurrentVacancies(ctx, adm.ID)
	if err != nil {
		return nil, err
	}
	for _, v := range vacancies {
		arena.Vacancies[v.GroupID] = v
	}

	s.logger.WithFields(logrus.Fields{
		"administrator": admCode,
		"groups":        len(arena.Groups),
		"assets":        len(arena.Assets),
		"vacancies":     len(arena.Vacancies),
	}).Info("引用数据加载完成")
	return arena, nil
}
