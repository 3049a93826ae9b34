package vehicle

import (
	"fmt"

	"github.com/samber/lo"
)

const (
	// MessageHandbrakeWarning 急刹提示
	MessageHandbrakeWarning = "HandbrakeWarning"

	maxMessages = 16 // 每辆车保留的最近提示条数
)

// Sustainer 持续播放的音效
type Sustainer interface {
	Maintain()   // 每步维持播放
	End()        // 结束播放
	Ended() bool // 是否已结束（可能被外部结束）
}

// IEffectsSink 控制器的所有副作用出口
// 功能：音效、部件损伤、用户提示、立即中止行驶
// 说明：控制器只通过该接口产生副作用，因此可以在没有仿真环境时单独测试
type IEffectsSink interface {
	StartBrakingSound() Sustainer                 // 开始播放急刹音效
	ApplyDamage(componentID string, amount int32) // 对部件造成损伤
	Message(key string, vehicleID int32)          // 用户提示
	AbortMotion()                                 // 立即中止当前行驶
}

// effects 车辆自身的副作用实现
type effects struct {
	v *Vehicle
}

// brakingSound 急刹音效
// 说明：只记录播放状态，具体的音频播放不在本模块范围内
type brakingSound struct {
	vehicleID  int32
	maintained int32
	ended      bool
}

func (s *brakingSound) Maintain() {
	if !s.ended {
		s.maintained++
	}
}

func (s *brakingSound) End() {
	if !s.ended {
		log.Debugf("vehicle %d: braking sound ended after %d ticks", s.vehicleID, s.maintained)
	}
	s.ended = true
}

func (s *brakingSound) Ended() bool {
	return s.ended
}

func (e *effects) StartBrakingSound() Sustainer {
	log.Debugf("vehicle %d: braking sound started", e.v.id)
	e.v.runtime.Handbrakes++
	return &brakingSound{vehicleID: e.v.id}
}

// ApplyDamage 扣减部件耐久，最低为0
func (e *effects) ApplyDamage(componentID string, amount int32) {
	c, ok := lo.Find(e.v.components, func(c *Component) bool { return c.ID == componentID })
	if !ok {
		log.Warnf("vehicle %d: no component %s", e.v.id, componentID)
		return
	}
	c.HP = lo.Clamp(c.HP-float64(amount), 0, c.MaxHP)
	log.Infof("vehicle %d: component %s takes %d damage, hp=%.1f/%.1f", e.v.id, c.ID, amount, c.HP, c.MaxHP)
}

func (e *effects) Message(key string, vehicleID int32) {
	text := fmt.Sprintf("%s: vehicle %d", key, vehicleID)
	log.Warn(text)
	e.v.messages = append(e.v.messages, text)
	if len(e.v.messages) > maxMessages {
		e.v.messages = e.v.messages[len(e.v.messages)-maxMessages:]
	}
}

func (e *effects) AbortMotion() {
	e.v.pather.failed()
}
